package backup

// Codec composes compression and encryption around a script. Writes go
// compress then encrypt then header; reads undo them in reverse order.
type Codec struct {
	compression *CompressionManager
	encryption  *EncryptionManager
	notifier    Notifier
}

// EncodeResult is the encoded artifact body plus what was applied to it
type EncodeResult struct {
	Data        []byte
	Header      ArchiveHeader
	Compression *CompressionStats
	Encryption  *EncryptionStats
}

// NewCodec creates a codec over the given managers
func NewCodec(compression *CompressionManager, encryption *EncryptionManager, notifier Notifier) *Codec {
	if compression == nil {
		compression = NewCompressionManager()
	}
	if encryption == nil {
		encryption = NewEncryptionManager()
	}
	return &Codec{compression: compression, encryption: encryption, notifier: notifier}
}

// Encode turns a plaintext script into artifact bytes
func (c *Codec) Encode(script string, opts BackupOptions) (*EncodeResult, error) {
	result := &EncodeResult{Header: ArchiveHeader{Version: headerVersion, Algorithm: CompressionTypeNone}}
	data := []byte(script)

	if opts.CompressionLevel > 0 {
		algorithm, ok := ParseCompressionType(string(opts.Algorithm))
		if !ok {
			return nil, NewCompressionError("unsupported compression algorithm", nil).
				WithContext("algorithm", string(opts.Algorithm))
		}
		compressed, stats, err := c.compression.Compress(data, algorithm, opts.CompressionLevel)
		if err != nil {
			return nil, err
		}
		data = compressed
		result.Compression = stats
		result.Header.Compressed = true
		result.Header.Algorithm = algorithm
	}

	if opts.Encrypt {
		encrypted, stats, err := c.encryption.Encrypt(data, opts.EncryptionKey)
		if err != nil {
			return nil, err
		}
		data = encrypted
		result.Encryption = stats
		result.Header.Encrypted = true
	}

	header := result.Header.Marshal()
	result.Data = append(header, data...)
	return result, nil
}

// Decode turns artifact bytes back into the plaintext script. An unknown
// header version and a wrong or missing key for an encrypted artifact are
// fatal; a failed decompression is reported and the bytes are used as they
// are.
func (c *Codec) Decode(data []byte, key string) (string, error) {
	header, payload, hasHeader := ParseHeader(data)
	if hasHeader {
		if err := header.Check(); err != nil {
			return "", err
		}
	}

	switch {
	case hasHeader && header.Encrypted && key == "":
		return "", NewDecryptionError("artifact is encrypted and no key was given", nil)
	case hasHeader && header.Encrypted, !hasHeader && key != "":
		plaintext, err := c.encryption.Decrypt(payload, key)
		if err != nil {
			return "", err
		}
		payload = plaintext
	}

	if algorithm := DetectCompression(payload); algorithm != CompressionTypeNone {
		decompressed, err := c.compression.Decompress(payload, algorithm)
		if err != nil {
			notify(c.notifier, levelWarn, "Decompression failed, treating artifact as plaintext", map[string]interface{}{
				"algorithm": string(algorithm),
				"error":     err.Error(),
			})
		} else {
			payload = decompressed
		}
	}

	return string(payload), nil
}

// Inspect reports what the header of an artifact says, if it has one
func Inspect(data []byte) (ArchiveHeader, bool) {
	header, _, ok := ParseHeader(data)
	return header, ok
}
