package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/upload"
)

const (
	messageNoFileUploaded   = "No file uploaded"
	messageNoFilesUploaded  = "No files uploaded"
	messageFileUploaded     = "File uploaded successfully"
	messageFilesUploaded    = "Files uploaded successfully"
	messageFileDeleted      = "File deleted successfully"
	formFieldFile           = "file"
	formFieldFiles          = "files"
	logEventUploadDeleted   = "upload_deleted"
	logEventUploadsAccepted = "uploads_accepted"
)

type uploadedFile struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
	URL          string `json:"url"`
}

func presentUpload(reference upload.Reference) uploadedFile {
	return uploadedFile{
		Filename:     reference.Filename,
		OriginalName: reference.OriginalName,
		Size:         reference.Size,
		MimeType:     reference.MimeType,
		URL:          reference.Path,
	}
}

// UploadHandlers serves the generic upload routes.
type UploadHandlers struct {
	uploads *upload.Handler
	logger  *zap.Logger
}

func NewUploadHandlers(uploads *upload.Handler, logger *zap.Logger) *UploadHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandlers{uploads: uploads, logger: logger}
}

func (handlers *UploadHandlers) UploadSingle(context *gin.Context) {
	references, err := acceptFiles(context, handlers.uploads, upload.Rules{MaxFiles: 1, Fields: []string{formFieldFile}})
	if err != nil {
		_ = context.Error(err)
		return
	}
	if len(references) == 0 {
		respondError(context, http.StatusBadRequest, messageNoFileUploaded, nil)
		return
	}
	handlers.logger.Info(logEventUploadsAccepted, zap.Int("count", 1))
	respondSuccess(context, http.StatusOK, messageFileUploaded, presentUpload(references[0]))
}

func (handlers *UploadHandlers) UploadMultiple(context *gin.Context) {
	references, err := acceptFiles(context, handlers.uploads, upload.Rules{MaxFiles: upload.MaxFiles, Fields: []string{formFieldFiles}})
	if err != nil {
		_ = context.Error(err)
		return
	}
	if len(references) == 0 {
		respondError(context, http.StatusBadRequest, messageNoFilesUploaded, nil)
		return
	}
	files := make([]uploadedFile, 0, len(references))
	for _, reference := range references {
		files = append(files, presentUpload(reference))
	}
	handlers.logger.Info(logEventUploadsAccepted, zap.Int("count", len(files)))
	respondSuccess(context, http.StatusOK, messageFilesUploaded, gin.H{"files": files, "count": len(files)})
}

func (handlers *UploadHandlers) Info(context *gin.Context) {
	info, err := handlers.uploads.Info(context.Request.Context(), context.Param("filename"))
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusOK, "", info)
}

// Delete removes a stored upload. Unknown names are reported as 404.
func (handlers *UploadHandlers) Delete(context *gin.Context) {
	filename := context.Param("filename")
	if _, err := handlers.uploads.Info(context.Request.Context(), filename); err != nil {
		_ = context.Error(err)
		return
	}
	if err := handlers.uploads.Delete(context.Request.Context(), filename); err != nil {
		_ = context.Error(err)
		return
	}
	handlers.logger.Info(logEventUploadDeleted, zap.String("filename", filename))
	respondSuccess(context, http.StatusOK, messageFileDeleted, nil)
}
