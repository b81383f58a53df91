package models

// SearchRequest is the body of a search call. FolderID optionally narrows
// results to file hits within one folder.
type SearchRequest struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit,omitempty"`
	FolderID string `json:"folder_id,omitempty"`
}

// SearchHit is a single search result joined with file metadata when the
// identifier resolves to a known file.
type SearchHit struct {
	Identifier string  `json:"identifier"`
	Distance   float64 `json:"distance"`
	File       *File   `json:"file,omitempty"`
	Rank       int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchHit `json:"results"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	Query     string       `json:"query"`
}

// IndexRequest asks the service to index raw text under an identifier.
type IndexRequest struct {
	Identifier string `json:"identifier"`
	Text       string `json:"text"`
}

// IndexResponse reports the outcome of an index call.
type IndexResponse struct {
	Identifier string `json:"identifier"`
	Outcome    string `json:"outcome"`
}

// PresignUploadRequest asks for a presigned upload URL.
type PresignUploadRequest struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	FolderID string `json:"folder_id,omitempty"`
}

// CompleteUploadRequest finalizes an upload after the client PUT.
type CompleteUploadRequest struct {
	FileID string `json:"file_id"`
}

// PresignUploadResponse carries the upload URL and the pending file record.
type PresignUploadResponse struct {
	FileID    string `json:"file_id"`
	UploadURL string `json:"upload_url"`
	ExpiresIn int    `json:"expires_in"`
}

// DownloadResponse carries a presigned download URL.
type DownloadResponse struct {
	FileID      string `json:"file_id"`
	DownloadURL string `json:"download_url"`
	ExpiresIn   int    `json:"expires_in"`
}

// ListResponse is a page of file metadata.
type ListResponse struct {
	Files  []*File `json:"files"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
