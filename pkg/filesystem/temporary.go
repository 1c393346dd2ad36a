package filesystem

// TemporaryNamePrefix is the file name prefix used for intermediate
// temporary files created during atomic copy operations, so they're
// recognizable (and ignorable) if left behind by a crash.
const TemporaryNamePrefix = ".psync-tmp-"
