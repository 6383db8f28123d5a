package export

import "errors"

// ErrNoHeaders is returned when a dataset has no columns to render.
var ErrNoHeaders = errors.New("export: dataset has no headers")

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     []map[string]string
}

// Record returns row i in header order, reusing buf when it is large enough.
func (d Dataset) Record(i int, buf []string) []string {
	if cap(buf) < len(d.Headers) {
		buf = make([]string, len(d.Headers))
	}
	buf = buf[:len(d.Headers)]
	for j, header := range d.Headers {
		buf[j] = d.Rows[i][header]
	}
	return buf
}

// Renderer turns a dataset into a downloadable document.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}
