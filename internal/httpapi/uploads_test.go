package httpapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	uploadSinglePath   = "/api/uploads/single"
	uploadMultiplePath = "/api/uploads/multiple"
	uploadInfoPath     = "/api/uploads/info/"
	uploadDeletePath   = "/api/uploads/"
)

type uploadedFilePayload struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
	URL          string `json:"url"`
}

func TestUploadSingleStoresFile(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)

	recorder := harness.performMultipart(testingT, http.MethodPost, uploadSinglePath, nil, []formFile{
		{field: "file", filename: "Brochure.pdf", contentType: "application/pdf", content: []byte(pdfContent)},
	}, harness.viewerToken)
	require.Equal(testingT, http.StatusOK, recorder.Code, recorder.Body.String())

	var file uploadedFilePayload
	envelope := decodeEnvelope(testingT, recorder, &file)
	require.Equal(testingT, "File uploaded successfully", envelope.Message)
	require.Equal(testingT, "Brochure.pdf", file.OriginalName)
	require.Equal(testingT, int64(len(pdfContent)), file.Size)
	require.Equal(testingT, "application/pdf", file.MimeType)
	require.True(testingT, strings.HasPrefix(file.Filename, "file-"), file.Filename)
	require.True(testingT, strings.HasSuffix(file.Filename, ".pdf"), file.Filename)
	require.Equal(testingT, "/uploads/"+file.Filename, file.URL)
	require.Equal(testingT, []string{file.Filename}, storedBlobNames(testingT, harness))
}

func TestUploadSingleRejections(testingT *testing.T) {
	testCases := []struct {
		name            string
		token           func(apiHarness) string
		files           []formFile
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "anonymous",
			token:           func(apiHarness) string { return "" },
			files:           []formFile{{field: "file", filename: "a.pdf", contentType: "application/pdf", content: []byte(pdfContent)}},
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "authentication required",
		},
		{
			name:            "no file",
			token:           func(harness apiHarness) string { return harness.staffToken },
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "No file uploaded",
		},
		{
			name:  "two files",
			token: func(harness apiHarness) string { return harness.staffToken },
			files: []formFile{
				{field: "file", filename: "a.pdf", contentType: "application/pdf", content: []byte(pdfContent)},
				{field: "file", filename: "b.pdf", contentType: "application/pdf", content: []byte(pdfContent)},
			},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Too many files. Maximum is 1 files.",
		},
		{
			name:            "disguised image",
			token:           func(harness apiHarness) string { return harness.staffToken },
			files:           []formFile{{field: "file", filename: "photo.png", contentType: "image/png", content: []byte(pdfContent)}},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "File content does not match its declared image type.",
		},
		{
			name:            "unsupported type",
			token:           func(harness apiHarness) string { return harness.staffToken },
			files:           []formFile{{field: "file", filename: "run.sh", contentType: "application/x-sh", content: []byte("#!/bin/sh\n")}},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid file type. Allowed types: image/jpeg, image/jpg, image/png, image/gif, image/webp, application/pdf, application/msword, application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			harness := buildAPIHarness(testingT, true)
			recorder := harness.performMultipart(testingT, http.MethodPost, uploadSinglePath, nil, testCase.files, testCase.token(harness))
			require.Equal(testingT, testCase.expectedStatus, recorder.Code, recorder.Body.String())
			require.Equal(testingT, testCase.expectedMessage, decodeEnvelope(testingT, recorder, nil).Message)
			require.Empty(testingT, storedBlobNames(testingT, harness))
		})
	}
}

func TestUploadMultipleInfoAndDelete(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)

	recorder := harness.performMultipart(testingT, http.MethodPost, uploadMultiplePath, nil, []formFile{
		{field: "files", filename: "plan.pdf", contentType: "application/pdf", content: []byte(pdfContent)},
		{field: "files", filename: "render.png", contentType: "image/png", content: pngContent},
	}, harness.staffToken)
	require.Equal(testingT, http.StatusOK, recorder.Code, recorder.Body.String())

	var data struct {
		Files []uploadedFilePayload `json:"files"`
		Count int                   `json:"count"`
	}
	decodeEnvelope(testingT, recorder, &data)
	require.Equal(testingT, 2, data.Count)
	require.Len(testingT, data.Files, 2)

	info := harness.performJSON(testingT, http.MethodGet, uploadInfoPath+data.Files[0].Filename, nil, "")
	require.Equal(testingT, http.StatusOK, info.Code, info.Body.String())
	var infoData struct {
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	}
	decodeEnvelope(testingT, info, &infoData)
	require.Equal(testingT, data.Files[0].Filename, infoData.Filename)
	require.Equal(testingT, data.Files[0].Size, infoData.Size)

	deleted := harness.performJSON(testingT, http.MethodDelete, uploadDeletePath+data.Files[0].Filename, nil, harness.staffToken)
	require.Equal(testingT, http.StatusOK, deleted.Code, deleted.Body.String())
	require.Equal(testingT, "File deleted successfully", decodeEnvelope(testingT, deleted, nil).Message)
	require.Equal(testingT, []string{data.Files[1].Filename}, storedBlobNames(testingT, harness))

	missing := harness.performJSON(testingT, http.MethodDelete, uploadDeletePath+data.Files[0].Filename, nil, harness.staffToken)
	require.Equal(testingT, http.StatusNotFound, missing.Code)
	require.Equal(testingT, "File not found", decodeEnvelope(testingT, missing, nil).Message)

	missingInfo := harness.performJSON(testingT, http.MethodGet, uploadInfoPath+"absent.pdf", nil, "")
	require.Equal(testingT, http.StatusNotFound, missingInfo.Code)
}

func TestUploadMultipleRequiresFiles(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)

	recorder := harness.performMultipart(testingT, http.MethodPost, uploadMultiplePath, map[string]string{"note": "empty"}, nil, harness.staffToken)
	require.Equal(testingT, http.StatusBadRequest, recorder.Code)
	require.Equal(testingT, "No files uploaded", decodeEnvelope(testingT, recorder, nil).Message)
}
