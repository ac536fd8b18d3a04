package design

import (
	"regexp"
	"slices"
	"strings"
)

const themePlaceholder = "/* THEME_VARS */"

const screenHead = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Screen</title>
    <link rel="preconnect" href="https://fonts.googleapis.com" />
    <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin />
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@100..900&family=Poppins:wght@100..900&family=Fira+Code:wght@300..700&family=Plus+Jakarta+Sans:wght@200;300;400;500;600;700;800&display=swap" rel="stylesheet" />
    <script src="https://cdn.jsdelivr.net/npm/@tailwindcss/browser@4"></script>
    <script src="https://code.iconify.design/iconify-icon/3.0.0/iconify-icon.min.js"></script>
    <style type="text/tailwindcss">
      @theme inline {
        --color-background: var(--background);
        --color-foreground: var(--foreground);
        --color-primary: var(--primary);
        --color-primary-foreground: var(--primary-foreground);
        --color-secondary: var(--secondary);
        --color-secondary-foreground: var(--secondary-foreground);
        --color-muted: var(--muted);
        --color-muted-foreground: var(--muted-foreground);
        --color-accent: var(--accent);
        --color-destructive: var(--destructive);
        --color-card: var(--card);
        --color-card-foreground: var(--card-foreground);
        --color-border: var(--border);
        --color-input: var(--input);
        --color-ring: var(--ring);
        --radius-sm: calc(var(--radius) - 4px);
        --radius-md: calc(var(--radius) - 2px);
        --radius-lg: var(--radius);
      }
      :root { /* THEME_VARS */ }
    </style>
  </head>
  <body>`

const screenTail = `</body></html>`

// FallbackTheme is rendered when a session has no theme yet.
var FallbackTheme = []ThemeVar{
	{"--background", "#ffffff"},
	{"--foreground", "#000000"},
	{"--primary", "#2563eb"},
	{"--primary-foreground", "#ffffff"},
	{"--secondary", "#f1f5f9"},
	{"--secondary-foreground", "#1e293b"},
	{"--muted", "#f1f5f9"},
	{"--muted-foreground", "#64748b"},
	{"--card", "#ffffff"},
	{"--card-foreground", "#0f172a"},
	{"--border", "#e2e8f0"},
	{"--input", "#f0f2f1"},
	{"--ring", "#2563eb"},
	{"--radius", "0.5rem"},
	{"--font-sans", "system-ui,sans-serif"},
	{"--font-heading", "system-ui,sans-serif"},
}

// Wrap renders body as a complete document styled with theme.
func Wrap(body string, theme []ThemeVar) string {
	if len(theme) == 0 {
		theme = FallbackTheme
	}
	lines := make([]string, 0, len(theme))
	for _, v := range theme {
		lines = append(lines, "        "+v.Name+": "+v.Value+";")
	}
	head := strings.Replace(screenHead, themePlaceholder, strings.Join(lines, "\n"), 1)
	return head + "\n" + body + "\n" + screenTail
}

var bodyPattern = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)

// ExtractBody returns the trimmed inner body of a full document, or html
// unchanged if it has no body element.
func ExtractBody(html string) string {
	if html == "" {
		return ""
	}
	if m := bodyPattern.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	return html
}

// Render returns the full document of screen id styled with the current theme.
func (s *State) Render(id string) (string, bool) {
	sc, ok := s.Screen(id)
	if !ok {
		return "", false
	}
	return Wrap(sc.Body, s.ThemeVars()), true
}

// SubstituteImages replaces placeholder:{id} image sources with their URLs.
func SubstituteImages(body string, images map[string]string) string {
	if len(images) == 0 || !strings.Contains(body, "placeholder:") {
		return body
	}
	ids := make([]string, 0, len(images))
	for id := range images {
		ids = append(ids, id)
	}
	// Longer ids first so img-10 is not consumed as img-1.
	slices.SortFunc(ids, func(a, b string) int {
		if n := len(b) - len(a); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
	pairs := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		pairs = append(pairs, "placeholder:"+id, images[id])
	}
	return strings.NewReplacer(pairs...).Replace(body)
}
