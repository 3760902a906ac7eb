package checkpoint

import (
	"os"
	"path/filepath"

	"forge.evalgo.org/bldrerr"
)

// FileName is the checkpoint's fixed location relative to a workspace's
// cache directory.
const FileName = "checkpoint.bin"

// Path returns the checkpoint file path for workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".builder-cache", FileName)
}

// Save serializes ck and atomically writes it to workspace's checkpoint
// file (temp file + rename, matching the cache package's write idiom).
func Save(workspace string, ck *Checkpoint) error {
	data, err := ck.Serialize()
	if err != nil {
		return err
	}

	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return bldrerr.Wrap(bldrerr.KindSystem, err, "creating checkpoint directory")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return bldrerr.Wrap(bldrerr.KindSystem, err, "writing checkpoint file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return bldrerr.Wrap(bldrerr.KindSystem, err, "renaming checkpoint file into place")
	}
	return nil
}

// Load reads and deserializes workspace's checkpoint file. A missing file
// returns (nil, nil): there is simply nothing to resume from.
func Load(workspace string) (*Checkpoint, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "reading checkpoint file")
	}
	return Deserialize(data)
}
