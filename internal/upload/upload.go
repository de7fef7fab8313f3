package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/model"
)

const (
	// MaxFileSize bounds every uploaded file.
	MaxFileSize int64 = 10 << 20
	// MaxFiles bounds the number of files per request.
	MaxFiles = 10
	// DefaultPublicPrefix is the URL path uploaded blobs are served from.
	DefaultPublicPrefix = "/uploads"

	filenameSuffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	filenameSuffixLength   = 10

	logEventCleanupUpload = "cleanup_upload"
	logEventDeleteUpload  = "delete_upload"

	typeJPEG = "image/jpeg"
	typeJPG  = "image/jpg"
	typePNG  = "image/png"
	typeGIF  = "image/gif"
	typeWEBP = "image/webp"
	typePDF  = "application/pdf"
	typeDOC  = "application/msword"
	typeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	// DocumentTypes are accepted for résumé-like fields.
	DocumentTypes = []string{typePDF, typeDOC, typeDOCX}
	// ImageTypes are accepted for image-like fields.
	ImageTypes = []string{typeJPEG, typeJPG, typePNG, typeGIF, typeWEBP}
	// AllTypes are accepted for fields with no declared purpose.
	AllTypes = append(append([]string{}, ImageTypes...), DocumentTypes...)

	// extensionByType names stored files. Client supplied extensions are never used.
	extensionByType = map[string]string{
		typeJPEG: ".jpg",
		typeJPG:  ".jpg",
		typePNG:  ".png",
		typeGIF:  ".gif",
		typeWEBP: ".webp",
		typePDF:  ".pdf",
		typeDOC:  ".doc",
		typeDOCX: ".docx",
	}

	// contentSignatures lists the detected types that satisfy a declared type.
	// Office formats also match their container so partially detected files pass.
	contentSignatures = map[string][]string{
		typeJPEG: {typeJPEG},
		typeJPG:  {typeJPEG},
		typePNG:  {typePNG},
		typeGIF:  {typeGIF},
		typeWEBP: {typeWEBP},
		typePDF:  {typePDF},
		typeDOC:  {typeDOC, "application/x-ole-storage"},
		typeDOCX: {typeDOCX, "application/zip"},
	}

	// ErrUpload classifies every rejection raised by Accept.
	ErrUpload = errors.New("upload rejected")
)

// Error names the rejected field. Message is safe to show to clients.
type Error struct {
	Field   string
	Message string
}

func (err *Error) Error() string {
	if err.Field == "" {
		return err.Message
	}
	return fmt.Sprintf("%s: %s", err.Field, err.Message)
}

func (err *Error) Is(target error) bool {
	return target == ErrUpload
}

// Reference describes a stored upload.
type Reference struct {
	Field        string `json:"field"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
}

// Attachment converts the reference into the persisted form.
func (reference Reference) Attachment() model.Attachment {
	return model.Attachment{
		Filename:     reference.Filename,
		OriginalName: reference.OriginalName,
		Path:         reference.Path,
		Size:         reference.Size,
		MimeType:     reference.MimeType,
	}
}

// AllowedTypes classifies a form field by purpose.
func AllowedTypes(field string) []string {
	lowered := strings.ToLower(field)
	switch {
	case lowered == "resume" || lowered == "cv":
		return DocumentTypes
	case strings.Contains(lowered, "image") || strings.Contains(lowered, "avatar"):
		return ImageTypes
	default:
		return AllTypes
	}
}

// Config wires a Handler.
type Config struct {
	Blobs        BlobStore
	Logger       *zap.Logger
	PublicPrefix string
	MaxFileSize  int64
	Clock        func() time.Time
}

// Handler validates multipart files and stores them in a BlobStore.
type Handler struct {
	blobs        BlobStore
	logger       *zap.Logger
	publicPrefix string
	maxFileSize  int64
	clock        func() time.Time
}

func NewHandler(configuration Config) *Handler {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publicPrefix := strings.TrimRight(strings.TrimSpace(configuration.PublicPrefix), "/")
	if publicPrefix == "" {
		publicPrefix = DefaultPublicPrefix
	}
	maxFileSize := configuration.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = MaxFileSize
	}
	clock := configuration.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		blobs:        configuration.Blobs,
		logger:       logger,
		publicPrefix: publicPrefix,
		maxFileSize:  maxFileSize,
		clock:        clock,
	}
}

// Rules restrict a single Accept call.
type Rules struct {
	// MaxFiles values of zero or less fall back to MaxFiles.
	MaxFiles int
	// Fields lists the accepted form fields. Empty accepts every field.
	Fields []string
}

// Accept validates every file of form, then stores them. Nothing is stored unless every file passes.
func (handler *Handler) Accept(ctx context.Context, form *multipart.Form, rules Rules) ([]Reference, error) {
	if form == nil || len(form.File) == 0 {
		return []Reference{}, nil
	}
	maxFiles := rules.MaxFiles
	if maxFiles <= 0 {
		maxFiles = MaxFiles
	}

	fields := make([]string, 0, len(form.File))
	total := 0
	for field, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		if len(rules.Fields) > 0 && !containsType(rules.Fields, fieldBase(field)) {
			return nil, &Error{Field: field, Message: "Unexpected field name for file upload."}
		}
		fields = append(fields, field)
		total += len(headers)
	}
	if total > maxFiles {
		return nil, &Error{Message: fmt.Sprintf("Too many files. Maximum is %d files.", maxFiles)}
	}
	sort.Strings(fields)

	type pendingFile struct {
		field    string
		header   *multipart.FileHeader
		mimeType string
	}
	pending := make([]pendingFile, 0, total)
	for _, field := range fields {
		for _, header := range form.File[field] {
			mimeType, err := handler.check(field, header)
			if err != nil {
				return nil, err
			}
			pending = append(pending, pendingFile{field: field, header: header, mimeType: mimeType})
		}
	}

	references := make([]Reference, 0, len(pending))
	for _, file := range pending {
		reference, err := handler.store(ctx, file.field, file.header, file.mimeType)
		if err != nil {
			handler.Cleanup(ctx, references)
			return nil, err
		}
		references = append(references, reference)
	}
	return references, nil
}

func (handler *Handler) check(field string, header *multipart.FileHeader) (string, error) {
	if header.Size > handler.maxFileSize {
		return "", &Error{Field: field, Message: fmt.Sprintf("File too large. Maximum size is %dMB.", handler.maxFileSize>>20)}
	}

	allowed := AllowedTypes(field)
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(header.Header.Get("Content-Type"), ";", 2)[0]))
	if !containsType(allowed, declared) {
		return "", &Error{Field: field, Message: "Invalid file type. Allowed types: " + strings.Join(allowed, ", ")}
	}

	detected, err := detect(header)
	if err != nil {
		return "", fmt.Errorf("upload: read %s: %w", field, err)
	}
	if !matchesSignature(detected, contentSignatures[declared]) {
		return "", &Error{Field: field, Message: mismatchMessage(declared)}
	}
	return declared, nil
}

// IsImageFilename reports whether a stored upload name carries an image extension.
func IsImageFilename(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}

func (handler *Handler) store(ctx context.Context, field string, header *multipart.FileHeader, mimeType string) (Reference, error) {
	suffix, err := gonanoid.Generate(filenameSuffixAlphabet, filenameSuffixLength)
	if err != nil {
		return Reference{}, fmt.Errorf("upload: generate name: %w", err)
	}
	filename := fmt.Sprintf("%s-%s-%s%s",
		sanitizeField(field),
		strconv.FormatInt(handler.clock().UnixMilli(), 10),
		suffix,
		extensionByType[mimeType],
	)

	source, err := header.Open()
	if err != nil {
		return Reference{}, fmt.Errorf("upload: open %s: %w", field, err)
	}
	defer source.Close()

	written, err := handler.blobs.Put(ctx, filename, io.LimitReader(source, handler.maxFileSize+1))
	if err != nil {
		return Reference{}, err
	}
	if written > handler.maxFileSize {
		_ = handler.blobs.Delete(ctx, filename)
		return Reference{}, &Error{Field: field, Message: fmt.Sprintf("File too large. Maximum size is %dMB.", handler.maxFileSize>>20)}
	}

	return Reference{
		Field:        field,
		Filename:     filename,
		OriginalName: filepath.Base(header.Filename),
		Path:         path.Join(handler.publicPrefix, filename),
		Size:         written,
		MimeType:     mimeType,
	}, nil
}

// Info describes a stored upload.
func (handler *Handler) Info(ctx context.Context, filename string) (BlobInfo, error) {
	return handler.blobs.Stat(ctx, filename)
}

// Delete removes the named blob. Deleting an absent blob succeeds.
func (handler *Handler) Delete(ctx context.Context, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return nil
	}
	return handler.blobs.Delete(ctx, filename)
}

// Cleanup deletes every referenced blob, logging failures instead of returning them.
func (handler *Handler) Cleanup(ctx context.Context, references []Reference) {
	for _, reference := range references {
		if err := handler.Delete(ctx, reference.Filename); err != nil {
			handler.logger.Warn(logEventCleanupUpload, zap.String("filename", reference.Filename), zap.Error(err))
		}
	}
}

// DeleteAttachments removes blobs of persisted attachments, logging failures.
func (handler *Handler) DeleteAttachments(ctx context.Context, attachments []model.Attachment) {
	for _, attachment := range attachments {
		if err := handler.Delete(ctx, attachment.Filename); err != nil {
			handler.logger.Warn(logEventDeleteUpload, zap.String("filename", attachment.Filename), zap.Error(err))
		}
	}
}

func detect(header *multipart.FileHeader) (*mimetype.MIME, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return mimetype.DetectReader(file)
}

func matchesSignature(detected *mimetype.MIME, accepted []string) bool {
	for candidate := detected; candidate != nil; candidate = candidate.Parent() {
		for _, expected := range accepted {
			if candidate.Is(expected) {
				return true
			}
		}
	}
	return false
}

func mismatchMessage(declared string) string {
	if strings.HasPrefix(declared, "image/") {
		return "File content does not match its declared image type."
	}
	return "File content does not match its declared document type."
}

// fieldBase strips the array suffix browsers append to repeated fields.
func fieldBase(field string) string {
	return strings.TrimSuffix(field, "[]")
}

func sanitizeField(field string) string {
	var builder strings.Builder
	for _, character := range strings.ToLower(field) {
		switch {
		case character >= 'a' && character <= 'z', character >= '0' && character <= '9', character == '_', character == '-':
			builder.WriteRune(character)
		}
	}
	if builder.Len() == 0 {
		return "file"
	}
	return builder.String()
}

func containsType(allowed []string, candidate string) bool {
	for _, value := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
