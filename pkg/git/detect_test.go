package git_test

import (
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/git"
)

var _ = Describe("RepoName", func() {
	It("falls back to the directory name outside a repository", func() {
		dir := filepath.Join(GinkgoT().TempDir(), "scratch")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())

		Expect(git.RepoName(dir)).To(Equal("scratch"))
	})

	It("names nested directories after the repository root", func() {
		if _, err := exec.LookPath("git"); err != nil {
			Skip("git is not installed")
		}

		root := filepath.Join(GinkgoT().TempDir(), "billing")
		nested := filepath.Join(root, "internal", "sync")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())
		Expect(exec.Command("git", "init", "-q", root).Run()).To(Succeed())

		Expect(git.RepoName(nested)).To(Equal("billing"))
	})
})
