package index

// FileRow is the main file abstraction: one row per walked entry, holding
// basic file data, filesystem metadata, and any computed fields.
//
// Pointer fields are nullable in the store. A nil pointer means the field was
// not requested by configuration or has no value for this entry (content
// fields of a directory, symlink, or unreadable file), which is distinct from
// false/empty.
type FileRow struct {
	ID        int64
	EntryTime string
	AbsPath   string
	Path      string
	Ext       *string
	Mode      *string
	IsDir     *bool
	IsFile    *bool
	IsSymlink *bool
	IsEmpty   bool
	Size      *int64
	User      *string
	Group     *string
	UID       *int64
	GID       *int64
	Atime     *string
	Mtime     *string
	Ctime     *string

	IsArchive  *bool
	IsDocument *bool
	IsMedia    *bool
	IsCode     *bool
	IsIgnored  *bool

	IsBinary  *bool
	BytesType *string
	FileMagic *string
	CRC32     *string
	SHA256    *string
	SHA512    *string
	MD5       *string
	Simhash   *string

	// Match fields hold JSON arrays of the input tokens that matched.
	CRC32Match   *string
	SHA256Match  *string
	SHA512Match  *string
	MD5Match     *string
	SimhashMatch *string
	PathMatch    *string
	ContentMatch *string
	YaraMatch    *string

	Computed bool
}

// setColumn assigns a scanned column value onto the row by column name.
// Unknown columns (e.g. expressions in a user-supplied selection query) are
// dropped; enrichment only needs the named schema columns.
func (r *FileRow) setColumn(name string, val any) {
	switch name {
	case "id":
		r.ID = asInt(val)
	case "entry_time":
		r.EntryTime = asString(val)
	case "abs_path":
		r.AbsPath = asString(val)
	case "path":
		r.Path = asString(val)
	case "ext":
		r.Ext = asStringPtr(val)
	case "mode":
		r.Mode = asStringPtr(val)
	case "is_dir":
		r.IsDir = asBoolPtr(val)
	case "is_file":
		r.IsFile = asBoolPtr(val)
	case "is_symlink":
		r.IsSymlink = asBoolPtr(val)
	case "is_empty":
		r.IsEmpty = asInt(val) != 0
	case "size":
		r.Size = asIntPtr(val)
	case "user":
		r.User = asStringPtr(val)
	case "group":
		r.Group = asStringPtr(val)
	case "uid":
		r.UID = asIntPtr(val)
	case "gid":
		r.GID = asIntPtr(val)
	case "atime":
		r.Atime = asStringPtr(val)
	case "mtime":
		r.Mtime = asStringPtr(val)
	case "ctime":
		r.Ctime = asStringPtr(val)
	case "is_archive":
		r.IsArchive = asBoolPtr(val)
	case "is_document":
		r.IsDocument = asBoolPtr(val)
	case "is_media":
		r.IsMedia = asBoolPtr(val)
	case "is_code":
		r.IsCode = asBoolPtr(val)
	case "is_ignored":
		r.IsIgnored = asBoolPtr(val)
	case "is_binary":
		r.IsBinary = asBoolPtr(val)
	case "bytes_type":
		r.BytesType = asStringPtr(val)
	case "file_magic":
		r.FileMagic = asStringPtr(val)
	case "crc32":
		r.CRC32 = asStringPtr(val)
	case "sha256":
		r.SHA256 = asStringPtr(val)
	case "sha512":
		r.SHA512 = asStringPtr(val)
	case "md5":
		r.MD5 = asStringPtr(val)
	case "simhash":
		r.Simhash = asStringPtr(val)
	case "crc32_match":
		r.CRC32Match = asStringPtr(val)
	case "sha256_match":
		r.SHA256Match = asStringPtr(val)
	case "sha512_match":
		r.SHA512Match = asStringPtr(val)
	case "md5_match":
		r.MD5Match = asStringPtr(val)
	case "simhash_match":
		r.SimhashMatch = asStringPtr(val)
	case "path_match":
		r.PathMatch = asStringPtr(val)
	case "content_match":
		r.ContentMatch = asStringPtr(val)
	case "yara_match":
		r.YaraMatch = asStringPtr(val)
	case "computed":
		r.Computed = asInt(val) != 0
	}
}

func asString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func asStringPtr(val any) *string {
	if val == nil {
		return nil
	}
	s := asString(val)
	return &s
}

func asInt(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func asIntPtr(val any) *int64 {
	if val == nil {
		return nil
	}
	n := asInt(val)
	return &n
}

func asBoolPtr(val any) *bool {
	if val == nil {
		return nil
	}
	b := asInt(val) != 0
	return &b
}
