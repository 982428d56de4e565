package main

import (
	"unsafe"
)

/*
#cgo windows LDFLAGS: -lpsapi
#cgo linux LDFLAGS: -ldl

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>
#include <libloaderapi.h>
#include <stdlib.h>

char* ModulePath() {
    HMODULE hModule = NULL;
    if (!GetModuleHandleExA(GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS |
                           GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT,
                           (LPCTSTR)ModulePath,
                           &hModule)) {
        return NULL;
    }

    DWORD size = MAX_PATH;
    char* buffer = NULL;
    while (1) {
        char* grown = (char*)realloc(buffer, size);
        if (!grown) {
            free(buffer);
            return NULL;
        }
        buffer = grown;
        DWORD n = GetModuleFileNameA(hModule, buffer, size);
        if (n == 0) {
            free(buffer);
            return NULL;
        } else if (n < size) {
            return buffer;
        }
        size *= 2;
    }
}

#elif __linux__

#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

char* ModulePath() {
    Dl_info dl_info;
    if (dladdr((void*)ModulePath, &dl_info) == 0 || dl_info.dli_fname == NULL) {
        return NULL;
    }
    return strdup(dl_info.dli_fname);
}

#else

#include <stdlib.h>

char* ModulePath() {
    return NULL;
}

#endif
*/
import "C"

// GetModulePath returns the absolute path of the shared library this runtime
// was loaded from, or "" when it cannot be determined.
func GetModulePath() string {
	modPath := C.ModulePath()
	if modPath == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(modPath))
	return C.GoString(modPath)
}
