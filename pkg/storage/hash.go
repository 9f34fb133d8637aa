package storage

import (
	"encoding/hex"
	"fmt"
	"io"

	"lukechampine.com/blake3"

	"audio-transcriber/pkg/models"
)

// ContentHash returns the hex blake3-256 digest of r.
func ContentHash(r io.Reader) (string, error) {
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("calculating blake3 hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ResultKey identifies a finished result: the same audio transcribed with the
// same language in the same mode under the same settings. scope names those
// settings (backend, model and chunk length) so a config change misses.
func ResultKey(hash string, lang models.Language, mode models.Mode, scope string) string {
	return fmt.Sprintf("%s:%s:%s:%s", hash, lang, mode, scope)
}
