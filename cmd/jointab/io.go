package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/NerdMeNot/jointab"
)

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func extension(path string) string {
	if isURL(path) {
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
	}
	return strings.ToLower(filepath.Ext(path))
}

func loadFrame(path string) (*jointab.DataFrame, error) {
	ext := extension(path)
	if isURL(path) {
		if ext != ".parquet" {
			return nil, fmt.Errorf("only parquet can be read from a URL, got %q", ext)
		}
		return jointab.ReadParquetURL(path)
	}

	switch ext {
	case ".csv":
		return jointab.ReadCSV(path)
	case ".json":
		return jointab.ReadJSON(path)
	case ".parquet":
		return jointab.ReadParquet(path)
	default:
		return nil, fmt.Errorf("unknown file type %q", ext)
	}
}

func writeFrame(df *jointab.DataFrame, path string) error {
	switch ext := extension(path); ext {
	case ".csv":
		return df.WriteCSV(path)
	case ".json":
		return df.WriteJSON(path)
	case ".parquet":
		return df.WriteParquet(path)
	default:
		return fmt.Errorf("unknown file type %q", ext)
	}
}
