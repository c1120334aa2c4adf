package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type request struct {
	ID      uint64          `json:"id"`
	Command string          `json:"command"`
	Text    json.RawMessage `json:"text"`
	Model   string          `json:"model"`
}

type response struct {
	ID         *uint64 `json:"id,omitempty"`
	Success    bool    `json:"success"`
	Embeddings any     `json:"embeddings,omitempty"`
	Dimensions int     `json:"dimensions,omitempty"`
	Model      string  `json:"model,omitempty"`
	Error      string  `json:"error,omitempty"`
}

var (
	echoID     = flag.Bool("echo-id", false, "echo request ids in replies")
	readyAfter = flag.Duration("ready-after", 0, "answer pings unsuccessfully until this much time passed")
	dims       = flag.Int("dims", 4, "vector dimensions")
	stallOn    = flag.String("stall-on", "", "never answer embed requests for this text")
	exitOn     = flag.String("exit-on", "", "exit with status 3 on this text")
	slowOn     = flag.String("slow-on", "", "answer this text after -slow-delay, out of order")
	slowDelay  = flag.Duration("slow-delay", 300*time.Millisecond, "delay for -slow-on")
	failStart  = flag.Bool("fail-start", false, "print a diagnostic and exit 2 immediately")
	ignoreTerm = flag.Bool("ignore-term", false, "ignore SIGTERM and stdin EOF")
)

var outMu sync.Mutex

func write(resp response) {
	b, _ := json.Marshal(resp)
	outMu.Lock()
	defer outMu.Unlock()
	os.Stdout.Write(append(b, '\n'))
}

func vector(s string) []float32 {
	v := make([]float32, *dims)
	for i := range v {
		v[i] = float32(len(s)) + float32(i)/10
	}
	return v
}

func texts(raw json.RawMessage) ([]string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}, false
	}
	var ss []string
	_ = json.Unmarshal(raw, &ss)
	return ss, true
}

func main() {
	flag.Parse()
	if *failStart {
		fmt.Fprintln(os.Stderr, "fatal: model load failed")
		os.Exit(2)
	}
	if *ignoreTerm {
		signal.Ignore(syscall.SIGTERM)
	}
	fmt.Fprintln(os.Stderr, "fake embedder starting")
	start := time.Now()

	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		var req request
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			fmt.Fprintln(os.Stderr, "bad request:", err)
			continue
		}
		resp := response{Success: true}
		if *echoID {
			id := req.ID
			resp.ID = &id
		}
		switch req.Command {
		case "ping":
			if time.Since(start) < *readyAfter {
				resp.Success = false
				resp.Error = "loading"
			}
			write(resp)
		case "status":
			resp.Model = "fake-model"
			write(resp)
		case "embed":
			in, batch := texts(req.Text)
			first := ""
			if len(in) > 0 {
				first = in[0]
			}
			if *exitOn != "" && first == *exitOn {
				fmt.Fprintln(os.Stderr, "crashing on request")
				os.Exit(3)
			}
			if *stallOn != "" && first == *stallOn {
				continue
			}
			resp.Model = req.Model
			resp.Dimensions = *dims
			if batch {
				vs := make([][]float32, len(in))
				for i, s := range in {
					vs[i] = vector(s)
				}
				resp.Embeddings = vs
			} else {
				resp.Embeddings = vector(first)
			}
			if *slowOn != "" && first == *slowOn {
				go func(r response) {
					time.Sleep(*slowDelay)
					write(r)
				}(resp)
				continue
			}
			write(resp)
		default:
			resp.Success = false
			resp.Error = "unknown command " + req.Command
			write(resp)
		}
	}
	for *ignoreTerm {
		time.Sleep(time.Hour)
	}
}
