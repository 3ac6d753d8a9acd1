package ingest_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

var _ = Describe("Lines", func() {
	It("returns complete lines with their offsets", func() {
		lines, consumed := ingest.Lines([]byte("a\nbb\n"))
		Expect(consumed).To(Equal(5))
		Expect(lines).To(HaveLen(2))
		Expect(lines[0].Offset).To(Equal(int64(0)))
		Expect(string(lines[1].Raw)).To(Equal("bb"))
		Expect(lines[1].Offset).To(Equal(int64(2)))
	})

	It("never consumes an unterminated tail", func() {
		lines, consumed := ingest.Lines([]byte("done\n{\"partial\":"))
		Expect(consumed).To(Equal(5))
		Expect(lines).To(HaveLen(1))
	})

	It("consumes nothing without a newline", func() {
		lines, consumed := ingest.Lines([]byte(`{"a":1}`))
		Expect(consumed).To(Equal(0))
		Expect(lines).To(BeEmpty())
	})

	It("strips carriage returns and skips blank lines", func() {
		lines, consumed := ingest.Lines([]byte("x\r\n\n  \ny\n"))
		Expect(consumed).To(Equal(9))
		Expect(lines).To(HaveLen(2))
		Expect(string(lines[0].Raw)).To(Equal("x"))
		Expect(lines[1].Offset).To(Equal(int64(7)))
	})
})

var _ = Describe("JSON helpers", func() {
	It("decodes objects with numbers preserved", func() {
		obj, ok := ingest.DecodeObject([]byte(`{"ts":1700000000123}`))
		Expect(ok).To(BeTrue())
		Expect(obj["ts"]).To(Equal(json.Number("1700000000123")))
	})

	It("rejects non-objects", func() {
		_, ok := ingest.DecodeObject([]byte(`[1,2]`))
		Expect(ok).To(BeFalse())
		_, ok = ingest.DecodeObject([]byte(`{"a":`))
		Expect(ok).To(BeFalse())
	})

	It("returns the first non-empty string", func() {
		obj := map[string]any{"a": "  ", "b": 3, "c": " x "}
		Expect(ingest.String(obj, "a", "b", "c")).To(Equal("x"))
	})

	It("parses kinds", func() {
		k, ok := ingest.ParseKind("cursor-hooks")
		Expect(ok).To(BeTrue())
		Expect(k).To(Equal(ingest.KindCursorHooks))
		Expect(k.WholeFile()).To(BeFalse())
		Expect(ingest.KindAntigravityFiles.WholeFile()).To(BeTrue())

		_, ok = ingest.ParseKind("nope")
		Expect(ok).To(BeFalse())
	})
})
