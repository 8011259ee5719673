package tokenizer

import (
	"strings"
	"testing"
)

var benchTexts = map[string]string{
	"query": "0-dimensional biomaterials show inductive properties.",
	"abstract": `Alterations of the architecture of cerebral white matter in the developing
	human brain can affect cortical development and result in functional disabilities.
	A line scan diffusion-weighted magnetic resonance imaging sequence with diffusion
	tensor analysis was applied to measure the apparent diffusion coefficient.`,
	"long": strings.Repeat(`Information retrieval systems combine tokenization, stemming, and
	stop word removal to normalize text into searchable terms. `, 50),
}

func BenchmarkTerms(b *testing.B) {
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Terms(text)
			}
		})
	}
}
