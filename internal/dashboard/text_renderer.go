// TextRenderer prints colorized dashboard blocks for plain terminals and pipes.
package dashboard

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"greedos/internal/forensic"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// Banner is printed once before the first text snapshot.
const Banner = `
   ____               ____         ____
  / ___|_ __ ___  ___|  _ \  ___  / ___|
 | |  _| '__/ _ \/ _ \ | | |/ _ \ \___ \
 | |_| | | |  __/  __/ |_| | (_) | ___) |
  \____|_|  \___|\___|____/ \___/ |____/
   DDoS simulation & forensic dashboard
`

// categoryColors maps event categories to ANSI colors.
var categoryColors = map[forensic.Category]string{
	forensic.CategorySimulation:    colorBlue,
	forensic.CategoryPacket:        colorGreen,
	forensic.CategoryProtocolAlert: colorMagenta,
	forensic.CategoryTrafficAlert:  colorRed,
}

func categoryColor(c forensic.Category) string {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return colorGray
}

// TextRenderer prints each snapshot as a block of ANSI colored text.
type TextRenderer struct {
	out    io.Writer
	mu     sync.Mutex
	once   sync.Once
	banner bool
	color  bool
}

// NewTextRenderer creates a TextRenderer writing to os.Stdout.
func NewTextRenderer() *TextRenderer {
	return NewTextRendererTo(os.Stdout, true, true)
}

// NewTextRendererTo creates a TextRenderer writing to out. With color false
// the ANSI escapes are omitted.
func NewTextRendererTo(out io.Writer, banner, color bool) *TextRenderer {
	return &TextRenderer{out: out, banner: banner, color: color}
}

func (r *TextRenderer) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}

func (r *TextRenderer) printBanner() {
	if !r.banner {
		return
	}
	fmt.Fprintf(r.out, "%s%s%s\n", r.c(colorCyan), Banner, r.c(colorReset))
}

// Render implements Renderer.
func (r *TextRenderer) Render(s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.once.Do(r.printBanner)

	state := r.c(colorGreen) + "running" + r.c(colorReset)
	if !s.Running {
		state = r.c(colorYellow) + "idle" + r.c(colorReset)
	}
	fmt.Fprintf(r.out, "%s[%s]%s %sGreeDos Dashboard%s %s\n",
		r.c(colorGray), s.TakenAt.Format(time.RFC3339), r.c(colorReset),
		r.c(colorCyan), r.c(colorReset), state)

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Target:\t%s\n", s.Target)
	fmt.Fprintf(tw, "Threads:\t%d\n", s.Workers)
	fmt.Fprintf(tw, "Duration (sec):\t%d\n", int(s.Duration/time.Second))
	fmt.Fprintf(tw, "Requests Sent:\t%s%d%s\n", r.c(colorMagenta), s.Requests, r.c(colorReset))
	fmt.Fprintf(tw, "Packets:\t%d (%d suspicious)\n", s.Packets, s.Anomalies)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "%sForensic Log%s\n", r.c(colorRed), r.c(colorReset))
	if len(s.Events) == 0 {
		fmt.Fprintln(r.out, "  No events")
	}
	for _, ev := range s.Events {
		fmt.Fprintf(r.out, "  %s | %s%s%s: %s\n",
			ev.Timestamp.Format(time.RFC3339),
			r.c(categoryColor(ev.Category)), ev.Category, r.c(colorReset), ev.Details)
	}

	fmt.Fprintf(r.out, "%sAlerts%s\n", r.c(colorYellow), r.c(colorReset))
	if len(s.Alerts) == 0 {
		fmt.Fprintln(r.out, "  No alerts")
	}
	for _, a := range s.Alerts {
		fmt.Fprintf(r.out, "  %s\n", a.Message)
	}
	_, err := fmt.Fprintln(r.out)
	return err
}
