package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// fileTypeExtensions maps downloadable output types to the extension they
// are saved with. FASTA outputs arrive gzipped.
var fileTypeExtensions = map[string]string{
	"json":  "json",
	"fasta": "fasta.gz",
	"bam":   "bam",
	"vcf":   "vcf",
}

// FileTypes lists the downloadable output types.
func FileTypes() []string {
	return []string{"json", "fasta", "bam", "vcf"}
}

// ValidFileType reports whether t names a downloadable output type.
func ValidFileType(t string) bool {
	_, ok := fileTypeExtensions[t]
	return ok
}

// DownloadRequest names the outputs to fetch. Names maps remote identifiers
// to local sample names; samples present in the map are saved (and have
// their FASTA headers rewritten) under their local name.
type DownloadRequest struct {
	GUIDs     []string
	Names     map[string]string
	FileTypes []string
	OutDir    string
}

// Download fetches every requested file type for every sample concurrently.
// A sample output the service cannot serve is skipped with a warning;
// transport failures abort the whole download.
func (c *Client) Download(ctx context.Context, req DownloadRequest) error {
	for _, t := range req.FileTypes {
		if !ValidFileType(t) {
			return fmt.Errorf("invalid file type %q", t)
		}
	}
	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	c.logger.Info("downloading outputs", "samples", len(req.GUIDs), "types", req.FileTypes)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for _, guid := range req.GUIDs {
		for _, fileType := range req.FileTypes {
			g.Go(func() error {
				return c.downloadOne(ctx, guid, req.Names[guid], fileType, req.OutDir)
			})
		}
	}
	return g.Wait()
}

func (c *Client) downloadOne(ctx context.Context, guid, name, fileType, outDir string) error {
	url := c.endpoints.API + "/get_output/" + guid + "/" + fileType
	var data []byte
	err := c.retry.do(ctx, c.logger, "downloading "+guid+"."+fileType, func() error {
		var err error
		data, err = c.send(ctx, http.MethodGet, url, nil, "")
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("skipping output", "sample", guid, "type", fileType, "status_code", apiErr.StatusCode)
			return nil
		}
		return err
	}

	prefix := guid
	if name != "" {
		prefix = name
	}
	path := filepath.Join(outDir, prefix+"."+fileTypeExtensions[fileType])
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	c.logger.Info("downloaded", "file", filepath.Base(path))

	if name != "" && fileType == "fasta" {
		if err := rewriteFastaHeader(path, guid, name); err != nil {
			c.logger.Warn("could not rewrite fasta header", "file", filepath.Base(path), "error", err)
		}
	}
	return nil
}

// rewriteFastaHeader replaces the remote identifier in a gzipped FASTA with
// "<guid>|<name>" so downstream tools see the submitter's sample name.
func rewriteFastaHeader(path, guid, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return err
	}
	contents, err := io.ReadAll(zr)
	zr.Close()
	f.Close()
	if err != nil {
		return err
	}
	if !bytes.Contains(contents, []byte(guid)) {
		return fmt.Errorf("%s not present in %s", guid, filepath.Base(path))
	}
	contents = bytes.ReplaceAll(contents, []byte(guid), []byte(guid+"|"+name))

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	if _, err := zw.Write(contents); err != nil {
		zw.Close()
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
