package handler

import "net/http"

// StaticHandler serves the front-end bundle from dir.
func StaticHandler(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}
