package models

// CopyRequest represents a request to copy a local path or remote URI into the remote
type CopyRequest struct {
	Source      string `json:"source" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// DeleteRequest represents a request to delete a path on the remote
type DeleteRequest struct {
	RemotePath string `json:"remote_path" binding:"required"`
}

// ListEntry is a single item of `rclone lsjson` output.
// ModTime is kept verbatim: some backends report empty or non-RFC3339 times,
// and one odd entry must not fail the whole listing.
type ListEntry struct {
	Path     string `json:"Path"`
	Name     string `json:"Name"`
	Size     int64  `json:"Size"`
	MimeType string `json:"MimeType,omitempty"`
	ModTime  string `json:"ModTime,omitempty"`
	IsDir    bool   `json:"IsDir"`
}

// FileListResponse is returned by the listing endpoint
type FileListResponse struct {
	Files []string `json:"files"`
}

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the JSON body of every JSON error reply
type ErrorResponse struct {
	Error string `json:"error"`
}
