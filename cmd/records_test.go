package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fin-extract/internal/model"
)

func TestFormatRecordsList(t *testing.T) {
	ok := okRecord("a.txt", []byte("a"))
	ok.ID = "rec-1"
	ok.CompanyInfo.INN = "7701234567"
	bad := failedRecord("scan.pdf", []byte("b"), false)
	bad.ID = "rec-2"

	var buf bytes.Buffer
	formatRecordsList(&buf, []model.Record{ok, bad})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "FILE", "STATUS", "STRATEGY", "INN", "YEARS", "ERROR"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"rec-1", "a.txt", "ok", "heuristic", "7701234567", "2023"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"rec-2", "scan.pdf", "failed", "DelegatedServiceError"}, strings.Fields(lines[2]))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Бухгал...", truncate("Бухгалтерский баланс", 9))
}
