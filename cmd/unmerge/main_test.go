package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unmerge/internal/classfile/classfiletest"
	"unmerge/internal/config"
	"unmerge/internal/distmarker"
	"unmerge/internal/logging"
)

func resetFlags(t *testing.T) {
	t.Helper()
	verbose, watchInput = false, false
	configPath = ""
	inputPath, outputPath, distribution, targetClasses, manifestPath, configOut = "", "", "", "", "", ""
	batchSize = 1
	cfg = config.DefaultConfig()
	cfg.BatchSize = 2
	logging.Reset()
	t.Cleanup(logging.Reset)
}

// captureCmd returns a command whose stdout is collected in the buffer.
func captureCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func writeJar(t *testing.T, path string, entries map[string][]byte, order ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func readJar(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(b)
	}
	return out
}

func clientOnly() classfiletest.Annotation {
	return classfiletest.Marker("net.fabricmc.api.Environment", "net.fabricmc.api.EnvType", "CLIENT")
}

func TestRunBinary(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	inputPath = filepath.Join(dir, "merged.jar")
	outputPath = filepath.Join(dir, "server.jar")
	targetClasses = filepath.Join(dir, "targets.txt")
	distribution = "server"

	writeJar(t, inputPath, map[string][]byte{
		"com/example/Screen.class": classfiletest.New("com/example/Screen").Annotate(clientOnly()).Bytes(),
		"com/example/Block.class":  classfiletest.New("com/example/Block").Method("draw", "()V", clientOnly()).Method("tick", "()V").Bytes(),
		"data/example/loot.json":   []byte("{}"),
	}, "com/example/Screen.class", "com/example/Block.class", "data/example/loot.json")

	cmd, out := captureCmd()
	require.NoError(t, runBinary(cmd, nil))

	got := readJar(t, outputPath)
	assert.NotContains(t, got, "com/example/Screen.class")
	assert.Contains(t, got, "com/example/Block.class")
	assert.Equal(t, "{}", got["data/example/loot.json"])

	targets, err := os.ReadFile(targetClasses)
	require.NoError(t, err)
	assert.Equal(t, "com/example/Block.class\ncom/example/Screen.class\n", string(targets))

	assert.Contains(t, out.String(), "SERVER")
	assert.Contains(t, out.String(), "members removed")
}

func TestRunBinary_UnknownDistribution(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	inputPath = filepath.Join(dir, "missing.jar")
	outputPath = filepath.Join(dir, "out.jar")
	distribution = "both"

	cmd, _ := captureCmd()
	err := runBinary(cmd, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, distmarker.ErrUnknownDistribution))
	assert.NoFileExists(t, outputPath)
}

func TestRunBinary_MissingInput(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	inputPath = filepath.Join(dir, "missing.jar")
	outputPath = filepath.Join(dir, "out.jar")
	distribution = "client"

	cmd, _ := captureCmd()
	err := runBinary(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.jar")
	assert.NoFileExists(t, outputPath)
}

func TestRunSource(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	inputPath = filepath.Join(dir, "merged-sources.jar")
	outputPath = filepath.Join(dir, "client-sources.jar")
	targetClasses = filepath.Join(dir, "targets.txt")
	manifestPath = filepath.Join(dir, "MANIFEST.MF")
	distribution = "CLIENT"

	require.NoError(t, os.WriteFile(targetClasses, []byte("com/example/Block.class\n"), 0o644))
	require.NoError(t, os.WriteFile(manifestPath,
		[]byte("Manifest-Version: 1.0\r\nFabric-Loom-Server-Only-Entries: com/example/server/Console.class\r\n\r\n"), 0o644))

	block := "package com.example;\n\n" +
		"import net.fabricmc.api.EnvType;\n" +
		"import net.fabricmc.api.Environment;\n\n" +
		"public class Block {\n" +
		"    @Environment(EnvType.SERVER)\n" +
		"    void serve() {}\n" +
		"}\n"
	untargeted := "package com.example;\n\n" +
		"import net.fabricmc.api.EnvType;\n" +
		"import net.fabricmc.api.Environment;\n\n" +
		"public class Item {\n" +
		"    @Environment(EnvType.SERVER)\n" +
		"    void serve() {}\n" +
		"}\n"
	writeJar(t, inputPath, map[string][]byte{
		"com/example/Block.java":          []byte(block),
		"com/example/Item.java":           []byte(untargeted),
		"com/example/server/Console.java": []byte("package com.example.server;\n\npublic class Console {}\n"),
	}, "com/example/Block.java", "com/example/Item.java", "com/example/server/Console.java")

	cmd, out := captureCmd()
	require.NoError(t, runSource(cmd, nil))

	got := readJar(t, outputPath)
	assert.NotContains(t, got["com/example/Block.java"], "serve")
	assert.Equal(t, untargeted, got["com/example/Item.java"])
	assert.NotContains(t, got["com/example/server/Console.java"], "class Console")
	assert.Contains(t, out.String(), "CLIENT")
}

func TestRunSource_BadManifest(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	inputPath = filepath.Join(dir, "in.jar")
	outputPath = filepath.Join(dir, "out.jar")
	manifestPath = filepath.Join(dir, "MANIFEST.MF")
	distribution = "server"
	require.NoError(t, os.WriteFile(manifestPath, []byte("no separator here\n"), 0o644))

	cmd, _ := captureCmd()
	err := runSource(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MANIFEST.MF")
	assert.NoFileExists(t, outputPath)
}

func TestSetup(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	configPath = filepath.Join(dir, "unmerge.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("batch_size: 7\nlogging:\n  level: warn\n  format: text\n"), 0o644))

	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "")
	require.NoError(t, setup(cmd))
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, "warn", cfg.Logging.Level)

	require.NoError(t, cmd.Flags().Set("batch-size", "3"))
	verbose = true
	require.NoError(t, setup(cmd))
	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSetup_InvalidBatchSize(t *testing.T) {
	resetFlags(t)
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "")
	require.NoError(t, cmd.Flags().Set("batch-size", "0"))

	err := setup(cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidBatchSize))
}

func TestRunConfig(t *testing.T) {
	resetFlags(t)
	t.Setenv("UNMERGE_BATCH_SIZE", "5")
	dir := t.TempDir()
	configOut = filepath.Join(dir, "conf", "unmerge.yaml")

	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "")
	require.NoError(t, setup(cmd))
	require.NoError(t, os.Unsetenv("UNMERGE_BATCH_SIZE"))
	out, buf := captureCmd()
	require.NoError(t, runConfig(out, nil))
	assert.Contains(t, buf.String(), configOut)

	loaded, err := config.Load(configOut)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.BatchSize)
	assert.Equal(t, cfg.Logging.Level, loaded.Logging.Level)
}

func TestPostRunSyncsLogger(t *testing.T) {
	resetFlags(t)
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "")
	require.NoError(t, setup(cmd))
	assert.NotPanics(t, func() { rootCmd.PersistentPostRun(rootCmd, nil) })
}

func TestRulesMarkdown(t *testing.T) {
	out := rulesMarkdown(distmarker.Rules())
	for _, r := range distmarker.Rules() {
		assert.Contains(t, out, r.AnnotationType)
	}
	assert.Contains(t, out, "net.neoforged.api.distmarker.OnlyIns")
	assert.Contains(t, out, "_interface")
	assert.Contains(t, out, "Fabric-Loom-Client-Only-Entries")
}

func TestRulesCommand(t *testing.T) {
	var buf bytes.Buffer
	rulesCmd.SetOut(&buf)
	t.Cleanup(func() { rulesCmd.SetOut(nil) })
	require.NoError(t, rulesCmd.RunE(rulesCmd, nil))
	assert.Contains(t, buf.String(), "neoforge")
}
