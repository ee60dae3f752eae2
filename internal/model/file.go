package model

// FileType is the set of file kinds the wire protocol recognizes. Decoding
// does not validate it: a value outside this set is kept as received.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypePDF   FileType = "pdf"
	FileTypeText  FileType = "text"
	FileTypeOther FileType = "other"
)

// FileInfo describes one file offered by a sender.
type FileInfo struct {
	ID       string   `json:"id"`
	Size     int64    `json:"size"`
	FileName string   `json:"fileName"`
	FileType FileType `json:"fileType"`
}

// SendRequest is the body of POST /api/localsend/v1/send-request.
type SendRequest struct {
	Info  DeviceInfo          `json:"info"`
	Files map[string]FileInfo `json:"files"`
}

// SendInfo is the query-string payload of POST /api/localsend/v1/send.
type SendInfo struct {
	FileID string `json:"fileId"`
	Token  string `json:"token"`
}
