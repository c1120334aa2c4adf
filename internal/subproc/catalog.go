package subproc

import (
	"slices"
	"strings"

	"aidispatch/internal/backend"
	"aidispatch/internal/common/fsutil"
)

// DefaultModels is the built-in catalog of the embedding worker.
var DefaultModels = []backend.ModelInfo{
	{Name: "sentence-transformers/all-MiniLM-L6-v2", Kind: backend.KindEmbed, Size: 90_900_000, Dimensions: 384},
	{Name: "sentence-transformers/all-mpnet-base-v2", Kind: backend.KindEmbed, Size: 438_000_000, Dimensions: 768},
	{Name: "BAAI/bge-small-en-v1.5", Kind: backend.KindEmbed, Size: 133_000_000, Dimensions: 384},
}

const cachePrefix = "models--"

// cacheEntry maps "org/name" to the hub cache directory "models--org--name".
func cacheEntry(model string) string {
	return cachePrefix + strings.ReplaceAll(model, "/", "--")
}

// catalog returns the static models with Downloaded derived from the cache.
func (b *Backend) catalog() []backend.ModelInfo {
	models := slices.Clone(b.cfg.Models)
	present, err := fsutil.SubdirsWithPrefix(b.cfg.CacheDir, cachePrefix)
	if err != nil {
		b.log.Debug().Err(err).Str("dir", b.cfg.CacheDir).Msg("model cache not readable")
		return models
	}
	for i := range models {
		models[i].Downloaded = present[cacheEntry(models[i].Name)]
	}
	return models
}
