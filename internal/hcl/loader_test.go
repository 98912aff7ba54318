package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoPipeline = `
pipeline "lobby" {
  fps = 10

  node "cam" {
    type = "camera_input"
    parameters = {
      source      = "rtsp://lobby.local/stream"
      buffer_size = 10
    }
    position = { x = 100, y = 40 }
  }

  node "det" {
    type = "object_detection"
    parameters = {
      confidence = 0.5
      classes    = ["person", "car"]
    }
  }

  node "log" {
    type = "log_output"
  }

  edge "e1" {
    source = "cam"
    target = "det"
  }

  edge "e2" {
    source      = "det"
    target      = "log"
    source_port = "detections"
  }
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDirDecodesPipeline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lobby.hcl", demoPipeline)

	pipelines, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, pipelines, 1)

	p := pipelines[0]
	assert.Equal(t, "lobby", p.Name)
	assert.Equal(t, 10.0, p.FPS)
	require.Len(t, p.Nodes, 3)
	require.Len(t, p.Edges, 2)

	cam := p.Node("cam")
	require.NotNil(t, cam)
	assert.Equal(t, "camera_input", cam.Type)
	assert.Equal(t, "rtsp://lobby.local/stream", cam.Parameters["source"])
	assert.Equal(t, 10.0, cam.Parameters["buffer_size"])
	require.NotNil(t, cam.Position)
	assert.Equal(t, 100.0, cam.Position.X)

	det := p.Node("det")
	require.NotNil(t, det)
	assert.Equal(t, []any{"person", "car"}, det.Parameters["classes"])

	log := p.Node("log")
	require.NotNil(t, log)
	assert.Nil(t, log.Parameters)

	assert.Equal(t, "detections", p.Edges[1].SourcePort)
}

func TestLoadDirRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `pipeline "lobby" {
  node "cam" {
    type = "camera_input"
  }
}`)
	writeFile(t, dir, "b.hcl", `pipeline "lobby" {
  node "cam" {
    type = "camera_input"
  }
}`)

	_, err := LoadDir(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined in both")
}

func TestLoadDirEmpty(t *testing.T) {
	pipelines, err := LoadDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, pipelines)
}

func TestLoadFileBadSyntax(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.hcl", `pipeline "x" {`)

	_, err := LoadDir(context.Background(), dir)
	assert.Error(t, err)
}
