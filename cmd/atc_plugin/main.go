// Command atc_plugin is built with -buildmode=c-shared and loaded by the
// simulator. Every export answers with the JSON array format of hostapi.
package main

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C" // This is required to import the C code

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/openato/onboard/internal/plugin"
	"github.com/openato/onboard/pkg/hostapi"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentPluginVersion string = "0.0.1"
	BuildDate            string = "unknown"

	PluginName string = "atc_plugin"
)

var (
	// ModulePath is the absolute path to this library file.
	ModulePath string

	// ModuleFolder holds the config file and is the base for relative paths.
	ModuleFolder string

	mu       sync.Mutex
	instance *plugin.Plugin
	host     *hostapi.Host
)

// init is run automatically when the module is loaded
func init() {
	ModulePath = GetModulePath()
	ModuleFolder = filepath.Dir(ModulePath)

	if err := start(); err != nil {
		fmt.Fprintf(os.Stderr, "atc_plugin: %v\n", err)
	}
}

func start() error {
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := plugin.New(ctx, plugin.Options{
		ConfigDir: ModuleFolder,
		BaseDir:   ModuleFolder,
		Name:      PluginName,
		Version:   CurrentPluginVersion,
		BuildDate: BuildDate,
	})
	if err != nil {
		return err
	}
	instance = p
	host = p.Host
	return nil
}

// called by the host to get the version of the plugin
//
//export ATCVersion
func ATCVersion(output *C.char, outputsize C.size_t) {
	reply(CurrentPluginVersion, output, outputsize)
}

// called by the host with a single "COMMAND|arg|arg" string
//
//export ATCCall
func ATCCall(output *C.char, outputsize C.size_t, input *C.char) {
	reply(currentHost().Call(C.GoString(input)), output, outputsize)
}

// called by the host with a command and an argument vector
//
//export ATCCallArgs
func ATCCallArgs(output *C.char, outputsize C.size_t, input *C.char, argv **C.char, argc C.int) {
	reply(currentHost().CallArgs(C.GoString(input), parseArgsFromC(argv, argc)), output, outputsize)
}

// called by the host before unloading
//
//export ATCShutdown
func ATCShutdown() {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		return
	}
	if err := instance.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "atc_plugin: shutdown: %v\n", err)
	}
	instance = nil
	host = hostapi.New(nil)
}

func currentHost() *hostapi.Host {
	mu.Lock()
	defer mu.Unlock()
	if host == nil {
		return hostapi.New(nil)
	}
	return host
}

// parseArgsFromC converts C argv array to Go string slice
func parseArgsFromC(argv **C.char, argc C.int) []string {
	var offset = unsafe.Sizeof(uintptr(0))
	var data []string
	for index := C.int(0); index < argc; index++ {
		data = append(data, C.GoString(*argv))
		argv = (**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(argv)) + offset))
	}
	return data
}

// reply copies the response into the host's buffer, truncating to fit
func reply(response string, output *C.char, outputsize C.size_t) {
	result := C.CString(response)
	defer C.free(unsafe.Pointer(result))
	var size = C.strlen(result) + 1
	if size > outputsize {
		size = outputsize
	}
	C.memmove(unsafe.Pointer(output), unsafe.Pointer(result), size)
}

func main() {}
