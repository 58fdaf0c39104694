// Copyright (c) 2025 The fsbrepack authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fsbrepack/internal/decode"
	"fsbrepack/internal/encoder"
	"fsbrepack/internal/fs"
	"fsbrepack/internal/fsb"
	"fsbrepack/internal/patch"
	"fsbrepack/internal/rebuild"
	"fsbrepack/internal/scan"
	"fsbrepack/internal/workspace"
	"fsbrepack/pkg/util/format"
)

func DefineReplaceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replace <host> --index N --with <audio> [--index N --with <audio> ...]",
		Short: "Replace samples and patch the host with a size-matched rebuilt bank",
		Long: `The 'replace' command rebuilds a bank with one or more samples swapped
out and splices the result back into a copy of the host file. All
--index/--with pairs feed a single rebuild. The rebuilt bank always
occupies exactly the bytes of the original one, so every other offset
in the host survives untouched.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunReplace,
	}

	cmd.Flags().IntSlice("index", nil, "index of a sample to replace; repeatable, paired with --with")
	cmd.Flags().StringArray("with", nil, "replacement audio file; repeatable, paired with --index")
	cmd.Flags().String("offset", "", "bank offset inside the host (e.g. 0x6400); scans for banks when omitted")
	cmd.Flags().IntP("bank", "b", 0, "bank index to use when scanning")
	cmd.Flags().StringP("output", "o", "", "patched host destination (default: <host>.patched)")
	cmd.Flags().String("encoder", encoder.DefaultBinary, "encoder binary to invoke")
	cmd.Flags().String("format", "", "target bank encoding (default: the bank's own)")
	cmd.Flags().Int("quality", 0, "encoder quality 1-100; caps the size search for variable-rate formats")
	cmd.Flags().Bool("standalone", false, "write the rebuilt bank itself instead of patching the host")
	cmd.Flags().Bool("allow-oversize", false, "if the rebuilt bank cannot fit, save it standalone instead of failing")
	cmd.Flags().Bool("keep-workspace", false, "keep the rebuild workspace for inspection")
	cmd.Flags().String("workdir", "", "base directory for rebuild workspaces")

	return cmd
}

func RunReplace(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := sessionLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	hostPath := args[0]
	indexes, _ := cmd.Flags().GetIntSlice("index")
	replacements, _ := cmd.Flags().GetStringArray("with")
	if len(indexes) == 0 {
		return fmt.Errorf("at least one --index/--with pair is required")
	}
	if len(indexes) != len(replacements) {
		return fmt.Errorf("got %d --index but %d --with; they come in pairs", len(indexes), len(replacements))
	}

	quality, _ := cmd.Flags().GetInt("quality")
	if quality < 0 || quality > 100 {
		return fmt.Errorf("quality %d out of range 0-100", quality)
	}

	standalone, _ := cmd.Flags().GetBool("standalone")
	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		if standalone {
			outPath = hostPath + ".rebuilt.fsb"
		} else {
			outPath = hostPath + ".patched"
		}
	}

	rec, err := locateBank(cmd, logger, hostPath)
	if err != nil {
		return err
	}
	fmt.Printf("[INFO] Using bank at 0x%X in %s\n", rec.Offset, hostPath)

	origLen, err := originalLength(hostPath, rec.Offset)
	if err != nil {
		return err
	}
	logger.Info("bank located", "offset", rec.Offset, "size", origLen)

	engine := decode.Serialize(decode.NewPCMEngine())

	workdir, _ := cmd.Flags().GetString("workdir")
	ws, err := workspace.Prepare(cmd.Context(), logger, engine, rec, workdir)
	if err != nil {
		return err
	}
	keep, _ := cmd.Flags().GetBool("keep-workspace")
	if keep {
		fmt.Printf("[INFO] Workspace: %s\n", ws.Root)
	} else {
		defer ws.Cleanup()
	}

	kind, err := targetFormat(cmd, ws)
	if err != nil {
		return err
	}

	for i, idx := range indexes {
		if err := ws.Substitute(engine, idx, replacements[i], kind); err != nil {
			return err
		}
	}

	binary, _ := cmd.Flags().GetString("encoder")
	client, err := encoder.New(binary)
	if err != nil {
		return err
	}

	allowOversize, _ := cmd.Flags().GetBool("allow-oversize")
	oversized := false
	eng := &rebuild.Engine{
		Encoder: client,
		Logger:  logger,
		TempDir: ws.Root,
	}
	if allowOversize {
		eng.ConfirmOversize = func(actual, target int64) bool {
			fmt.Printf("[WARN] Rebuilt bank is %s, slot is %s: saving standalone\n",
				format.FormatBytes(actual), format.FormatBytes(target))
			oversized = true
			return true
		}
	}

	rebuiltPath := filepath.Join(ws.Root, "rebuilt.fsb")
	err = eng.Rebuild(cmd.Context(), ws.BuildListPath(), rebuiltPath, rebuild.Options{Format: kind, Quality: quality}, origLen)
	if err != nil {
		return err
	}

	if standalone {
		if err := copyOut(rebuiltPath, outPath); err != nil {
			return err
		}
		fmt.Printf("[INFO] Rebuilt bank written to %s; host not patched\n", outPath)
		return nil
	}

	if oversized {
		saved := outPath + ".fsb"
		if err := copyOut(rebuiltPath, saved); err != nil {
			return err
		}
		fmt.Printf("[INFO] Oversized bank saved standalone to %s; host not patched\n", saved)
		logger.Warn("oversized bank saved standalone", "path", saved)
		return nil
	}

	if err := patch.Splice(logger, hostPath, outPath, rebuiltPath, rec.Offset, origLen); err != nil {
		return err
	}
	fmt.Printf("[INFO] Patched host written to %s\n", outPath)
	return nil
}

// locateBank resolves the target bank record from --offset, or scans
// and picks the --bank'th result.
func locateBank(cmd *cobra.Command, logger *slog.Logger, hostPath string) (scan.ContainerRecord, error) {
	offsetStr, _ := cmd.Flags().GetString("offset")
	if offsetStr != "" {
		offset, err := parseOffset(offsetStr)
		if err != nil {
			return scan.ContainerRecord{}, err
		}
		return scan.ContainerRecord{HostPath: hostPath, Offset: offset}, nil
	}

	results := scan.ScanFiles(cmd.Context(), []string{hostPath}, scan.Options{Logger: logger})
	res := &results[0]
	if res.Failed() {
		return scan.ContainerRecord{}, res.Err
	}
	if len(res.Banks) == 0 {
		return scan.ContainerRecord{}, fmt.Errorf("no banks found in %s", hostPath)
	}

	bankIdx, _ := cmd.Flags().GetInt("bank")
	if bankIdx < 0 || bankIdx >= len(res.Banks) {
		return scan.ContainerRecord{}, fmt.Errorf("bank %d out of range (%d found)", bankIdx, len(res.Banks))
	}
	return res.Banks[bankIdx].Record, nil
}

func originalLength(hostPath string, offset int64) (int64, error) {
	f, err := fs.Open(hostPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	size, err := fs.Size(f)
	if err != nil {
		return 0, err
	}
	return patch.OriginalLength(f, size, offset)
}

// targetFormat resolves the rebuild encoding: an explicit --format wins,
// otherwise the bank keeps its own.
func targetFormat(cmd *cobra.Command, ws *workspace.Workspace) (fsb.EncodingKind, error) {
	formatStr, _ := cmd.Flags().GetString("format")
	if formatStr == "" {
		formatStr = ws.Manifest().BuildFormat
	}
	return fsb.ParseKind(formatStr)
}

func copyOut(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
