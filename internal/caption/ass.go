package caption

import (
	"fmt"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// ASS subtitle track for portrait short-form video (1080x1920).
//
// One dialogue line per caption event, bold white text with a thick black
// outline and a short pop-in scale animation, centered above the bottom
// margin. Styling is burned in by the encoder via the subtitles filter.
// ---------------------------------------------------------------------------

const (
	playResX = 1080
	playResY = 1920

	subtitleFontName = "Arial"
	subtitleFontSize = 160

	// ASS colors are &HAABBGGRR (hex, BGR not RGB)
	assColorWhite       = "&H00FFFFFF"
	assColorBlack       = "&H00000000"
	assColorTransparent = "&H00000000"

	outlineWidth    = 9
	subtitleMarginV = 180
)

// WriteASS renders a caption timeline as an ASS subtitle file at outputPath.
// An empty timeline produces a valid file with no dialogue lines so the
// encoder's filter graph stays identical either way.
func WriteASS(events []Event, outputPath string) error {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", playResX)
	fmt.Fprintf(&sb, "PlayResY: %d\n", playResY)
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	// BorderStyle=1 is outline only, no box; BackColour stays fully transparent
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,1,0,0,0,100,100,0,0,1,%d,0,2,10,10,%d,1\n",
		subtitleFontName, subtitleFontSize,
		assColorWhite, assColorWhite, assColorBlack, assColorTransparent,
		outlineWidth, subtitleMarginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, e := range events {
		dur := e.End - e.Start
		// Pop-in: scale up to 125% with a slight tilt over the first sixth
		// of the display window, then settle back to 100%.
		animated := fmt.Sprintf(
			"{\\bord%d\\shad0\\t(0,%.2f,\\fscx125\\fscy125\\frz-5)\\t(%.2f,%.2f,\\fscx100\\fscy100\\frz0)}%s",
			outlineWidth, dur/6, dur/6, dur/3, escapeASSText(e.Text),
		)
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\\N\n",
			formatASSTime(e.Start), formatASSTime(e.End), animated)
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("write ASS subtitle file: %w", err)
	}
	return nil
}

// escapeASSText escapes characters that are special in ASS dialogue text.
func escapeASSText(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "{", "\\{")
	text = strings.ReplaceAll(text, "}", "\\}")
	return text
}

// formatASSTime converts seconds to the ASS timestamp format h:mm:ss.cc.
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := seconds - float64(hours*3600+minutes*60)

	return fmt.Sprintf("%d:%02d:%05.2f", hours, minutes, secs)
}
