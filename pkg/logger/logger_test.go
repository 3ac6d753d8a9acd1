package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	Expect(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("New", func() {
	It("writes text records by default", func() {
		var buf bytes.Buffer
		logger.New(logger.WithWriter(&buf)).Info("polled", "source", "codex-sessions")

		Expect(buf.String()).To(ContainSubstring("msg=polled"))
		Expect(buf.String()).To(ContainSubstring("source=codex-sessions"))
	})

	It("hides debug records unless enabled", func() {
		var quiet, loud bytes.Buffer
		logger.New(logger.WithWriter(&quiet)).Debug("hidden")
		logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("shown")

		Expect(quiet.String()).To(BeEmpty())
		Expect(loud.String()).To(ContainSubstring("shown"))
	})

	It("writes JSON with bound component", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithComponent("tail"))
		l.Info("recorded", "inserted", 3)

		parsed := decodeLine(&buf)
		Expect(parsed["msg"]).To(Equal("recorded"))
		Expect(parsed["component"]).To(Equal("tail"))
		Expect(parsed["inserted"]).To(BeNumerically("==", 3))
	})

	It("renders pretty output", func() {
		var buf bytes.Buffer
		logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Info("ready")
		Expect(buf.String()).To(ContainSubstring("ready"))
	})

	It("honours named levels", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithLevel("warn"))
		l.Info("dropped")
		l.Warn("kept")

		Expect(buf.String()).NotTo(ContainSubstring("dropped"))
		Expect(buf.String()).To(ContainSubstring("kept"))
	})

	It("copies records to every writer", func() {
		var a, b bytes.Buffer
		logger.New(logger.WithWriters(&a, &b)).Info("twice")
		Expect(a.String()).To(ContainSubstring("twice"))
		Expect(b.String()).To(ContainSubstring("twice"))
	})
})

var _ = Describe("ParseLevel", func() {
	DescribeTable("maps names",
		func(name string, want slog.Level, ok bool) {
			got, parsed := logger.ParseLevel(name)
			Expect(parsed).To(Equal(ok))
			Expect(got).To(Equal(want))
		},
		Entry("debug", "DEBUG", slog.LevelDebug, true),
		Entry("empty", "", slog.LevelInfo, true),
		Entry("warning alias", "warning", slog.LevelWarn, true),
		Entry("error", "error", slog.LevelError, true),
		Entry("unknown", "loud", slog.LevelInfo, false),
	)
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		Expect(logger.OrNop(nil).Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})

var _ = Describe("Multi", func() {
	It("fans out records and derived attributes", func() {
		var text, js bytes.Buffer
		m := logger.Multi(
			logger.New(logger.WithWriter(&text)),
			logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
			nil,
		)
		m.WithGroup("poll").With("source", "cursor").Info("done")

		Expect(text.String()).To(ContainSubstring("poll.source=cursor"))
		group, ok := decodeLine(&js)["poll"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(group["source"]).To(Equal("cursor"))
	})

	It("skips loggers below their level", func() {
		var info, debug bytes.Buffer
		m := logger.Multi(
			logger.New(logger.WithWriter(&info)),
			logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
		)
		m.Debug("detail")

		Expect(info.String()).To(BeEmpty())
		Expect(debug.String()).To(ContainSubstring("detail"))
	})
})
