// Package locale renders user-facing punishment messages.
package locale

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sandertv/gophertunnel/minecraft/text"
	"golang.org/x/text/language"
)

// localeData represents a mapping of translation keys to their respective values for a specific language.
type localeData map[string]string

// locales is a map of registered locales keyed by language tags.
var locales = make(map[language.Tag]localeData)

// defaults holds the built-in English messages. They are used as a fallback
// for keys a lang file does not override, and written out as the initial
// en.lang when none exists yet.
var defaults = localeData{
	"punishment.invalid":                    "<dark-red>INVALID</dark-red>",
	"punishment.ban.permanent.full-reason":  "<red>You have been permanently banned from this network.</red>\n<red>Reason: %1</red>",
	"punishment.ban.temp.full-reason":       "<red>You have been banned for <yellow>%1</yellow>.</red>\n<red>Reason: %2</red>\n<red>Until: <yellow>%3</yellow></red>",
	"punishment.mute.permanent.full-reason": "<red>You are permanently muted.</red>\n<red>Reason: %1</red>",
	"punishment.mute.temp.full-reason":      "<red>You are muted for <yellow>%1</yellow>.</red>\n<red>Reason: %2</red>\n<red>Until: <yellow>%3</yellow></red>",
	"punishment.kick.full-reason":           "<red>You have been kicked.</red>\n<red>Reason: %1</red>",
	"chat.loading":                          "<grey>Please wait a moment...</grey>",
	"error.internal":                        "<red>An internal error occurred. Please contact an administrator.</red>",
}

// Register registers a new locale from the specified language file path.
// It reads the language file and populates the locale data for the provided
// language tag. The language file should be in the format "key=value". If the
// file does not exist, it is created with the built-in defaults first.
func Register(lang language.Tag, filePath string) error {
	name := fmt.Sprintf("%s/%s.lang", filePath, lang.String())
	if _, err := os.Stat(name); os.IsNotExist(err) {
		if err = writeDefaults(name); err != nil {
			return err
		}
	}

	file, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("could not open lang file: %w", err)
	}
	defer file.Close()

	data := make(localeData)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) < 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		data[key] = value
	}
	if err = scanner.Err(); err != nil {
		return fmt.Errorf("error reading lang file: %w", err)
	}

	locales[lang] = data
	return nil
}

// Translate translates a key to the default language (English) and formats it
// with the provided arguments.
func Translate(key string, args ...any) string {
	return text.Colourf("%s", TranslateL(language.English, key, args...))
}

// TranslateL translates a key to a specified language and formats it with the
// provided arguments. Missing keys fall back to the built-in defaults.
// Placeholders of the form %1, %2, ... are replaced by the arguments.
func TranslateL(lang language.Tag, key string, args ...any) string {
	locale, ok := locales[lang]
	if !ok {
		locale = locales[language.English]
	}

	translation, ok := locale[key]
	if !ok {
		if translation, ok = defaults[key]; !ok {
			return fmt.Sprintf("missing translation for '%s'", key)
		}
	}

	for i, arg := range args {
		placeholder := fmt.Sprintf("%%%d", i+1)
		translation = strings.ReplaceAll(translation, placeholder, fmt.Sprintf("%v", arg))
	}
	return strings.ReplaceAll(translation, "\\n", "\n")
}

// writeDefaults ...
func writeDefaults(name string) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("could not create locale directory: %w", err)
	}

	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(defaults[key], "\n", "\\n"))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(name, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("could not write default lang file: %w", err)
	}
	return nil
}
