package main

// General API documentation for swaggo. The served document lives in
// internal/httpapi.
//
// @title           aidispatch API
// @version         1.0
// @description     Capability-oriented HTTP API over local and remote AI backends.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
