package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageBasename(t *testing.T) {
	pkg := &Package{Name: "emacspeak-ss", Version: "1.12.1-1", Architecture: "i386"}
	assert.Equal(t, "emacspeak-ss-1.12.1-1-i386", pkg.Basename())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "AVAILABLE", Available.String())
	assert.Equal(t, "PROCESSING", Processing.String())
	assert.Equal(t, "DONE", Done.String())
	assert.Equal(t, "FAILED", Failed.String())
}

func TestApplicationResultAddAnalysisResultDropsEmpty(t *testing.T) {
	r := &ApplicationResult{}

	r.AddAnalysisResult(&AnalysisResult{AnalysisName: "empty", Results: []*InnerResult{{}}})
	assert.Empty(t, r.AnalysisResults, "an AnalysisResult with no inner results must never appear in the emitted ApplicationResult")

	r.AddAnalysisResult(&AnalysisResult{AnalysisName: "checksum", Results: []*InnerResult{{
		FileSystemResults: []*FileResult{{Path: "/bin/ls"}},
	}}})
	assert.Len(t, r.AnalysisResults, 1)
}
