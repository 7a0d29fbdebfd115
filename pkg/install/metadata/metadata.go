// Package metadata builds the additional_metadata map the install
// engine's Finalize call writes verbatim into a wheel's installed
// dist-info directory: the conventional INSTALLER identifier, the
// optional REQUESTED marker, and PEP 610's direct_url.json.
//
// Grounded on the teacher's pkg/python/pep376 (REQUESTED) and
// pkg/python/pypa/direct_url (direct_url.json) packages, adapted from
// post-install hooks that mutate an in-memory VFS map into functions
// that return the bytes for a caller to fold into the map the install
// engine already threads through to Destination.Finalize.
package metadata

import (
	"bytes"
	"encoding/json"
	"io"
)

// Installer returns the conventional INSTALLER file content: the
// installing tool's identifier followed by a newline, per §6's
// "recommended conventional entry."
func Installer(name string) []byte {
	return []byte(name + "\n")
}

// Requested returns the content for PEP 376's REQUESTED marker file,
// written when a distribution is installed by direct user request
// rather than pulled in as a dependency. An empty comment is fine per
// the specification; reason, if non-empty, is written as a "#"-prefixed
// comment line.
func Requested(reason string) []byte {
	if reason == "" {
		return []byte{}
	}
	return []byte("# " + reason + "\n")
}

// DirectURL is PEP 610's direct_url.json payload.
type DirectURL struct {
	URL         string       `json:"url"`
	VCSInfo     *VCSInfo     `json:"vcs_info,omitempty"`
	ArchiveInfo *ArchiveInfo `json:"archive_info,omitempty"`
	DirInfo     *DirInfo     `json:"dir_info,omitempty"`
}

type VCSInfo struct {
	VCS               string `json:"vcs"`
	RequestedRevision string `json:"requested_revision,omitempty"`
	CommitID          string `json:"commit_id"`
}

type ArchiveInfo struct {
	Hash string `json:"hash,omitempty"`
}

type DirInfo struct {
	Editable bool `json:"editable,omitempty"`
}

// DirectURLJSON renders info as direct_url.json bytes.
func DirectURLJSON(info DirectURL) ([]byte, error) {
	return jsonDumps(info)
}

// jsonDumps mimics Python stdlib json.dumps's default separator
// formatting (", " and ": ") rather than encoding/json's default
// compact form, so direct_url.json reads the way pip's own writer
// produces it.
func jsonDumps(typedObj interface{}) ([]byte, error) {
	src, err := json.Marshal(typedObj)
	if err != nil {
		return nil, err
	}
	var untypedObj interface{}
	if err := json.Unmarshal(src, &untypedObj); err != nil {
		return nil, err
	}
	src, err = json.Marshal(untypedObj)
	if err != nil {
		return nil, err
	}

	var dst bytes.Buffer
	decoder := json.NewDecoder(bytes.NewReader(src))
	mapStack := []int{-1}
	completeObj := func() {
		depth := len(mapStack) - 1
		if mapStack[depth] < 0 {
			mapStack[depth]--
		} else {
			if mapStack[depth]%2 == 1 {
				dst.WriteString(": ")
			}
			mapStack[depth]++
		}
	}
	for {
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return dst.Bytes(), nil
			}
			return nil, err
		}

		switch tok := tok.(type) {
		case json.Delim:
			switch tok {
			case '[':
				mapStack = append(mapStack, -1)
			case '{':
				mapStack = append(mapStack, 1)
			case '}', ']':
				mapStack = mapStack[:len(mapStack)-1]
				completeObj()
			}
			dst.WriteRune(rune(tok))
		default:
			if depth := len(mapStack) - 1; mapStack[depth] < -1 {
				dst.WriteString(", ")
			} else if mapStack[depth] > 1 && mapStack[depth]%2 == 1 {
				dst.WriteString(", ")
			}
			bs, err := json.Marshal(tok)
			if err != nil {
				return nil, err
			}
			dst.Write(bs)
			completeObj()
		}
	}
}
