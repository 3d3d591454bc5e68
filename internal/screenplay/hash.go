package screenplay

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// boneyardPattern matches every region delimited by the literal
// "/* SCRIPTRAG-META-START" ... "SCRIPTRAG-META-END */" markers, including
// any surrounding whitespace, so that stripping it leaves no blank gap
// artifact behind. Multiple regions per scene are matched independently.
var boneyardPattern = regexp.MustCompile(`(?s)\s*/\*\s*SCRIPTRAG-META-START.*?SCRIPTRAG-META-END\s*\*/\s*`)

// StripBoneyard removes every boneyard metadata block from text, returning
// the scene body as it reads without analyzer annotations.
func StripBoneyard(text string) string {
	return boneyardPattern.ReplaceAllString(text, "")
}

// ComputeSceneHash returns the SHA-256 of the boneyard-stripped scene text,
// UTF-8 encoded. If truncate is true, the result is the first 16 hex
// characters (the stable "scene id" used by caches and agents); otherwise
// the full 64 hex characters are returned.
//
// The hash is a pure function of text: re-annotating a scene's boneyard
// block does not change its identity, and the same text always hashes the
// same way regardless of machine or run.
func ComputeSceneHash(text string, truncate bool) string {
	stripped := StripBoneyard(text)
	sum := sha256.Sum256([]byte(stripped))
	full := hex.EncodeToString(sum[:])
	if truncate {
		return full[:16]
	}
	return full
}
