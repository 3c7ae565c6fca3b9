// Package hadoopconf writes caller-supplied Hadoop settings as a
// yarn-site.xml and launches the cluster driver against it.
package hadoopconf

import (
	"encoding/xml"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"provisioner/internal/apperrors"
	"slices"
)

// FileName is the file written into the configuration directory.
const FileName = "yarn-site.xml"

type configuration struct {
	XMLName    xml.Name   `xml:"configuration"`
	Properties []property `xml:"property"`
}

type property struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

// Marshal renders conf in Hadoop's <configuration> format with keys sorted.
func Marshal(conf map[string]string) ([]byte, error) {
	doc := configuration{Properties: make([]property, 0, len(conf))}
	for _, k := range slices.Sorted(maps.Keys(conf)) {
		doc.Properties = append(doc.Properties, property{Name: k, Value: conf[k]})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// Unmarshal parses a Hadoop <configuration> document back into a map.
func Unmarshal(data []byte) (map[string]string, error) {
	var doc configuration
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	conf := make(map[string]string, len(doc.Properties))
	for _, p := range doc.Properties {
		conf[p.Name] = p.Value
	}
	return conf, nil
}

// Write replaces dir/yarn-site.xml with conf. The file is written to a
// temporary name first so readers never see a partial document.
func Write(dir string, conf map[string]string) error {
	data, err := Marshal(conf)
	if err != nil {
		return apperrors.IOFailure("hadoopconf.marshal", err)
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+"-*")
	if err != nil {
		return apperrors.IOFailure("hadoopconf.write", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.IOFailure("hadoopconf.write", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return apperrors.IOFailure("hadoopconf.write", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.IOFailure("hadoopconf.write", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, FileName)); err != nil {
		return apperrors.IOFailure("hadoopconf.write", fmt.Errorf("rename: %w", err))
	}
	return nil
}
