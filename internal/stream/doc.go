// Package stream adapts files and standard streams to the line Source and
// Sink used by the pipeline.
//
// Key Components:
//   - ReaderSource: splits any io.Reader into lines, dropping "\n" and "\r\n"
//   - FileSource: reads stdin, a file, a directory tree or every file
//     matched by a doublestar glob, decompressing gzip and zstd on the fly
//   - WriterSink: buffered newline-terminated output, optionally compressed
//
// Example Usage:
//
//	src, err := stream.Open("logs/**/*.log.gz")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	sink, err := stream.Create("-")
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
package stream
