package routes

import (
	"errors"
	"fmt"
	"net/http"

	"snapshot-stitcher/internal/myhttp"
	"snapshot-stitcher/internal/storage"
)

// Artifacts serves a stored image or manifest by the URL Put returned.
// URLs outside the storage backend are refused with 403.
func Artifacts(storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			http.Error(w, "url is required", http.StatusBadRequest)
			return
		}

		data, err := storageClient.Get(r.Context(), url)
		if errors.Is(err, storage.ErrOutsideStorage) {
			myhttp.Logger(r.Context()).Warn(fmt.Sprintf("rejected artifact url: %s", err))
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		if err != nil {
			myhttp.Logger(r.Context()).Error(fmt.Sprintf("failed to get artifact: %s", err))
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", storage.ContentType(url, data))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
