package dashboard

import (
	"fmt"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONRenderer prints one JSON object per snapshot.
type JSONRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONRenderer creates a JSONRenderer writing to os.Stdout.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{out: os.Stdout}
}

// NewJSONRendererTo creates a JSONRenderer writing to out.
func NewJSONRendererTo(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Render implements Renderer.
func (r *JSONRenderer) Render(s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = fmt.Fprintln(r.out, string(data))
	return err
}
