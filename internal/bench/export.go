package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
)

// WriteFile exports a result to path, picking the format from the
// extension: .json, .csv, or .arrow.
func WriteFile(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = WriteJSON(f, res)
	case ".csv":
		err = WriteCSV(f, res)
	case ".arrow":
		err = WriteArrow(f, res)
	default:
		err = fmt.Errorf("unsupported export format %q (want .json, .csv, or .arrow)", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes one row per trial with a header.
func WriteCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"trial", "mode", "model",
		"prompt_tokens", "generated_tokens",
		"prompt_time_ms", "generation_time_ms",
		"prompt_tps", "generation_tps",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, t := range res.Trials {
		row := []string{
			strconv.Itoa(i + 1),
			res.Mode,
			res.ModelDesc,
			strconv.Itoa(t.PromptTokens),
			strconv.Itoa(t.GeneratedTokens),
			formatMillis(t.PromptTime),
			formatMillis(t.GenerationTime),
			strconv.FormatFloat(t.PromptTPS, 'f', 2, 64),
			strconv.FormatFloat(t.GenerationTPS, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteArrow writes the trials as a single record batch in the Arrow
// IPC file format. Run-level fields travel as schema metadata.
func WriteArrow(w io.Writer, res *Result) error {
	md := arrow.MetadataFrom(map[string]string{
		"mode":         res.Mode,
		"model_desc":   res.ModelDesc,
		"model_params": strconv.FormatUint(res.ModelParams, 10),
		"started_at":   res.StartedAt.UTC().Format(time.RFC3339),
	})
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "trial", Type: arrow.PrimitiveTypes.Int64},
		{Name: "prompt_tokens", Type: arrow.PrimitiveTypes.Int64},
		{Name: "generated_tokens", Type: arrow.PrimitiveTypes.Int64},
		{Name: "prompt_time_ms", Type: arrow.PrimitiveTypes.Float64},
		{Name: "generation_time_ms", Type: arrow.PrimitiveTypes.Float64},
		{Name: "prompt_tps", Type: arrow.PrimitiveTypes.Float64},
		{Name: "generation_tps", Type: arrow.PrimitiveTypes.Float64},
	}, &md)

	pool := memory.DefaultAllocator
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	for i, t := range res.Trials {
		b.Field(0).(*array.Int64Builder).Append(int64(i + 1))
		b.Field(1).(*array.Int64Builder).Append(int64(t.PromptTokens))
		b.Field(2).(*array.Int64Builder).Append(int64(t.GeneratedTokens))
		b.Field(3).(*array.Float64Builder).Append(millis(t.PromptTime))
		b.Field(4).(*array.Float64Builder).Append(millis(t.GenerationTime))
		b.Field(5).(*array.Float64Builder).Append(t.PromptTPS)
		b.Field(6).(*array.Float64Builder).Append(t.GenerationTPS)
	}
	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(millis(d), 'f', 3, 64)
}
