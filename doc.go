// Package pak reads and writes PAK archives: a single file bundling a
// directory tree behind a fixed header, an entry index, and a contiguous
// data region.
//
// The format is the one the game host expects when scanning its paks
// directory: entry paths are forward-slash, case-sensitive, and rooted at
// the mount point the host loads content from. Listing an archive parses
// only the header and index; the data region is never touched until an
// entry is read or extracted.
//
// # Packing
//
// Build an archive from a directory tree:
//
//	err := pak.CreateFile(ctx, "mods/MyMod_P.pak", "./Dungeons",
//	    pak.CreateWithCompression(pak.CompressionZstd),
//	    pak.CreateWithMountPoint("Dungeons/Content"),
//	)
//
// Files are walked in deterministic path order and each entry records the
// SHA-1 of its uncompressed content. A failed pack leaves no partial
// archive behind.
//
// # Reading
//
// Open an archive and read entries without extracting:
//
//	a, err := pak.Open("mods/MyMod_P.pak")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	data, err := a.ReadFile("UI/Inventory/layout.bin")
//
// Archive implements fs.FS, fs.StatFS, and fs.ReadFileFS. Reads verify the
// stored hash and fail with ErrHashMismatch on corrupt content.
//
// # Extracting
//
//	err = a.Extract(ctx, "./out")
//
// Extract reproduces the packed tree byte-for-byte, creating intermediate
// directories as needed and verifying every entry's hash.
package pak
