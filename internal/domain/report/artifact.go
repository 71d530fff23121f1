package report

// Artifact is the result of generating a single report. It is backed
// either by a freshly rendered PDF (Buffer + FilePath) or by an
// existing cache entry (S3Key only). FromS3 artifacts never carry a
// local buffer or file; callers stream them straight from the store.
type Artifact struct {
	FilePath string
	Filename string
	Buffer   []byte
	S3Key    string
	FromS3   bool
}

// NewCachedArtifact builds an artifact for a cache hit.
func NewCachedArtifact(key string) *Artifact {
	return &Artifact{
		Filename: KeyFilename(key),
		S3Key:    key,
		FromS3:   true,
	}
}

// NewRenderedArtifact builds an artifact for a freshly rendered PDF.
func NewRenderedArtifact(filePath, filename string, buffer []byte) *Artifact {
	return &Artifact{
		FilePath: filePath,
		Filename: filename,
		Buffer:   buffer,
	}
}
