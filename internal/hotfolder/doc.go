// Package hotfolder turns files dropped into a watched directory into page
// versions.
//
// Each pass lists the directory once in lexical order and drives every new
// file through validation, digest tagging, optional staging and ingestion as
// one unit. A file that fails part way stays unprocessed and is retried on the
// next pass. Page identity is derived from the file name: "<paper>_p<N>.<ext>"
// maps to page N of <paper>; anything else is page 1 of its stem.
package hotfolder
