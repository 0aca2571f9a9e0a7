package table

import (
	"fmt"
	"os"
	"strings"

	ferrors "github.com/ramodal61/n8n/internal/errors"
)

// Resolve maps a requested table name to the name of a data file in
// dataDir. Strategies are tried in order of decreasing precision:
//
//  1. the name itself, when it already carries the data suffix
//  2. the name with the data suffix appended
//  3. case-insensitive match of either form against the directory listing
//  4. the sanitized name (spaces replaced with underscores), all forms
//
// An unresolved name is a NOT_FOUND error; the resolver never guesses
// beyond these strategies.
func Resolve(dataDir, tableName string) (string, error) {
	if tableName == "" {
		return "", ferrors.NewNotFound("table: empty table name")
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ferrors.NewNotFound(
				fmt.Sprintf("table: data directory %s does not exist", dataDir))
		}
		return "", fmt.Errorf("table: failed to list %s: %w", dataDir, err)
	}

	onDisk := make(map[string]string, len(entries)) // lower-cased name -> actual name
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		onDisk[strings.ToLower(e.Name())] = e.Name()
	}

	for _, candidate := range Candidates(tableName) {
		if actual, ok := onDisk[strings.ToLower(candidate)]; ok {
			return actual, nil
		}
	}

	return "", ferrors.NewNotFound(
		fmt.Sprintf("table: no data file in %s matches table %q", dataDir, tableName)).
		WithDetails(map[string]interface{}{
			"table_name": tableName,
			"tried":      Candidates(tableName),
		})
}

// Candidates returns the ordered file-name guesses for a table name.
func Candidates(tableName string) []string {
	sanitized := strings.ReplaceAll(strings.TrimSpace(tableName), " ", "_")

	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	if strings.HasSuffix(strings.ToLower(tableName), DataFileSuffix) {
		add(tableName)
	} else {
		add(tableName + DataFileSuffix)
	}
	if sanitized != tableName {
		if strings.HasSuffix(strings.ToLower(sanitized), DataFileSuffix) {
			add(sanitized)
		} else {
			add(sanitized + DataFileSuffix)
		}
	}
	return out
}
