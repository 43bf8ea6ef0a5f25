package contract

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// legacy interaction keys and the key each is read as
var interactionKeyRenames = [][2]string{
	{"producer_state", "provider_state"},
	{"providerState", "provider_state"},
}

// Parse reads a pact document. Keys written by older tools are renamed before the document
// is decoded: producer becomes provider and producer_state becomes provider_state.
func Parse(data []byte) (Contract, error) {
	if !gjson.ValidBytes(data) {
		return Contract{}, parseErrorf("$", "malformed JSON")
	}

	data, err := renameKey(data, "producer", "provider")
	if err != nil {
		return Contract{}, &ParseError{Path: "producer", Err: err}
	}
	count := int(gjson.GetBytes(data, "interactions.#").Int())
	for i := 0; i < count; i++ {
		prefix := fmt.Sprintf("interactions.%d.", i)
		for _, rename := range interactionKeyRenames {
			data, err = renameKey(data, prefix+rename[0], prefix+rename[1])
			if err != nil {
				return Contract{}, &ParseError{Path: fmt.Sprintf("interactions[%d].%s", i, rename[0]), Err: err}
			}
		}
	}

	var doc interface{}
	if err := unmarshal(data, &doc); err != nil {
		return Contract{}, &ParseError{Path: "$", Err: err}
	}
	return decodeContract(doc)
}

// ParseInteraction reads a single interaction document, as posted to the mock service.
func ParseInteraction(data []byte) (Interaction, error) {
	if !gjson.ValidBytes(data) {
		return Interaction{}, parseErrorf("$", "malformed JSON")
	}

	var err error
	for _, rename := range interactionKeyRenames {
		data, err = renameKey(data, rename[0], rename[1])
		if err != nil {
			return Interaction{}, &ParseError{Path: rename[0], Err: err}
		}
	}

	var doc interface{}
	if err := unmarshal(data, &doc); err != nil {
		return Interaction{}, &ParseError{Path: "$", Err: err}
	}
	return decodeInteraction(doc, "$")
}

func renameKey(data []byte, from, to string) ([]byte, error) {
	old := gjson.GetBytes(data, from)
	if !old.Exists() {
		return data, nil
	}
	if !gjson.GetBytes(data, to).Exists() {
		var err error
		data, err = sjson.SetRawBytes(data, to, []byte(old.Raw))
		if err != nil {
			return nil, err
		}
	}
	return sjson.DeleteBytes(data, from)
}

// Marshal renders the canonical, indented pact document.
func Marshal(c Contract) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal contract")
	}
	return append(data, '\n'), nil
}

// Write replaces the file at path with the contract. The document is written to a temporary
// file in the same directory and renamed into place, so readers never see a partial file.
func Write(c Contract, path string) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create pact directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary pact file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to write pact file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to sync pact file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "unable to close pact file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "unable to move pact file into %s", path)
	}
	return nil
}

// WriteToDir writes the contract to its derived file name within dir and returns the path.
func WriteToDir(c Contract, dir string) (string, error) {
	path, err := c.PactFilePath(dir)
	if err != nil {
		return "", err
	}
	log.Debugf("updating pact file for %s at %s", c.Provider.Name, path)
	if err := Write(c, path); err != nil {
		return "", err
	}
	return path, nil
}

// Read loads a contract from a file path or an http(s) URI.
func Read(pathOrURI string) (Contract, error) {
	data, err := load(pathOrURI)
	if err != nil {
		return Contract{}, err
	}
	c, err := Parse(data)
	if err != nil {
		return Contract{}, errors.Wrapf(err, "reading %s", pathOrURI)
	}
	return c, nil
}

func load(pathOrURI string) ([]byte, error) {
	if !strings.HasPrefix(pathOrURI, "http://") && !strings.HasPrefix(pathOrURI, "https://") {
		data, err := os.ReadFile(pathOrURI)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read pact file %s", pathOrURI)
		}
		return data, nil
	}

	res, err := httpClient.Get(pathOrURI)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to fetch pact %s", pathOrURI)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read pact %s", pathOrURI)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, errors.Errorf("unable to fetch pact %s: %d %s", pathOrURI, res.StatusCode, string(data))
	}
	return data, nil
}
