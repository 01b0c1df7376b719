package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"gallery-gateway/mediastore"
	"gallery-gateway/middleware/ratelimit/domain"
	"gallery-gateway/session"
)

var folderPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var errNoMediaStore = errors.New("media store not configured")

func validFolder(folder string) bool {
	return folder == "" || folderPattern.MatchString(folder)
}

func (a *API) ListPhotos(w http.ResponseWriter, r *http.Request) {
	if !a.limiter.Enforce(w, r, domain.ClassAPI, "Too many requests. Please slow down.") {
		return
	}

	q := r.URL.Query()
	page := parseIntDefault(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := min(maxPageSize, max(1, parseIntDefault(q.Get("limit"), defaultPageSize)))
	folder := q.Get("folder")

	if !validFolder(folder) {
		writeError(w, http.StatusBadRequest, "Invalid folder parameter")
		return
	}

	if a.media == nil {
		a.logger.Error("list photos", slog.Any("error", errNoMediaStore))
		writeError(w, http.StatusInternalServerError, "Failed to fetch photos")
		return
	}

	res, err := a.media.GetPhotos(r.Context(), mediastore.ListOptions{
		NextCursor: q.Get("next_cursor"),
		Limit:      limit,
		Folder:     folder,
	})
	if err != nil {
		a.logger.Error("list photos", slog.Any("error", err), slog.String("folder", folder))
		writeError(w, http.StatusInternalServerError, "Failed to fetch photos")
		return
	}

	photos := res.Photos
	if photos == nil {
		photos = []mediastore.Photo{}
	}

	setCORS(w.Header(), "GET, OPTIONS", "Content-Type")
	setNoCache(w.Header())
	writeJSON(w, http.StatusOK, PhotosResponse{
		Photos:     photos,
		NextCursor: res.NextCursor,
		TotalCount: res.TotalCount,
		Page:       page,
		Limit:      limit,
	})
}

func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	if !a.limiter.Enforce(w, r, domain.ClassAPI, "Too many upload requests. Please slow down.") {
		return
	}

	u := session.UserFromRequest(a.sessions, r)
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if !session.HasUploadPermission(u) {
		writeError(w, http.StatusForbidden, "Upload permission required")
		return
	}

	// margem para os outros campos do multipart
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "File size too large. Maximum 10MB allowed.")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	contentType := hdr.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}
	if hdr.Size > maxUploadSize {
		writeError(w, http.StatusBadRequest, "File size too large. Maximum 10MB allowed.")
		return
	}

	folder := r.FormValue("folder")
	if !validFolder(folder) {
		writeError(w, http.StatusBadRequest, "Invalid folder parameter")
		return
	}
	if folder == "" {
		folder = a.uploadFolder
	}

	if a.media == nil {
		a.logger.Error("upload photo", slog.Any("error", errNoMediaStore))
		writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	photo, err := a.media.Upload(r.Context(), mediastore.UploadInput{
		Filename:    hdr.Filename,
		ContentType: contentType,
		Size:        hdr.Size,
		Body:        file,
		Folder:      folder,
		Caption:     r.FormValue("caption"),
		PublicID:    uuid.NewString(),
	})
	if err != nil {
		a.logger.Error("upload photo", slog.Any("error", err), slog.String("folder", folder))
		writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	a.logger.Info("photo uploaded", slog.String("public_id", photo.PublicID), slog.Int64("size", hdr.Size))
	setCORS(w.Header(), "POST, OPTIONS", "Content-Type, Authorization")
	writeJSON(w, http.StatusOK, UploadResponse{Success: true, Photo: photo, Message: "Photo uploaded successfully"})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
