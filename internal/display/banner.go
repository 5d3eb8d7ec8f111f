// Package display renders the startup banner, settings summary, progress
// bar and human-readable sizes.
package display

import (
	"fmt"
	"io"

	"github.com/backmassage/mangaup/internal/term"
)

const banner = `
 _ __ ___   __ _ _ __   __ _  __ _ _   _ _ __  
| '_ ` + "`" + ` _ \ / _` + "`" + ` | '_ \ / _` + "`" + ` |/ _` + "`" + ` | | | | '_ \ 
| | | | | | (_| | | | | (_| | (_| | |_| | |_) |
|_| |_| |_|\__,_|_| |_|\__, |\__,_|\__,_| .__/ 
                       |___/            |_|    
`

// PrintBanner prints the ASCII art banner in magenta when colors are on.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, term.Magenta+banner+term.NC)
	fmt.Fprintln(w)
}

// PrintSummary prints label/value rows as an aligned settings block.
func PrintSummary(w io.Writer, rows [][2]string) {
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %s%-*s%s  %s\n", term.Bold, width+1, r[0]+":", term.NC, r[1])
	}
	fmt.Fprintln(w)
}
