package hostfunc

// HTTP types

type HTTPRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

type HTTPResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Filesystem types

type FSEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

type FSStatResponse struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	IsDir   bool   `json:"is_dir"`
	ModTime int64  `json:"mod_time"`
}

// FSFileType is the sniffed type of a file. Binary is set whenever a known
// signature matched.
type FSFileType struct {
	Extension string `json:"extension"`
	MIME      string `json:"mime"`
	Binary    bool   `json:"binary"`
}
