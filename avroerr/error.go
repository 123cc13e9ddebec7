// Package avroerr provides a single error type for the Avro scanner,
// tagged with a Kind so callers can branch on failure class without
// string matching. The shape follows zed's errors.E pattern:
// a variadic constructor that accepts a Kind, a wrapped error, and a
// printf-style message, with the message and its args last.
package avroerr

import (
	"bytes"
	"fmt"
	"strconv"
)

// Kind classifies an error per the scanner's error taxonomy.
type Kind int

const (
	Other Kind = iota
	BadVersionHeader
	BadSchema
	EmptySchema
	InvalidLength
	InvalidMetadataCount
	InvalidRecordCount
	InvalidCompressedSize
	UnknownCodec
	SyncLost
	ShortRead
	MissingField
	MissingDefault
	NotARecord
	NullabilityMismatch
	SchemaResolutionError
	SchemaMetadataMismatch
	UnsupportedDefault
	UnsupportedDefaultRecord
	InvalidValue
	ValueOverflow
	StringTooLong
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case BadVersionHeader:
		return "bad version header"
	case BadSchema:
		return "bad schema"
	case EmptySchema:
		return "empty schema"
	case InvalidLength:
		return "invalid length"
	case InvalidMetadataCount:
		return "invalid metadata count"
	case InvalidRecordCount:
		return "invalid record count"
	case InvalidCompressedSize:
		return "invalid compressed size"
	case UnknownCodec:
		return "unknown codec"
	case SyncLost:
		return "sync lost"
	case ShortRead:
		return "short read"
	case MissingField:
		return "missing field"
	case MissingDefault:
		return "missing default"
	case NotARecord:
		return "not a record"
	case NullabilityMismatch:
		return "nullability mismatch"
	case SchemaResolutionError:
		return "schema resolution error"
	case SchemaMetadataMismatch:
		return "schema metadata mismatch"
	case UnsupportedDefault:
		return "unsupported default"
	case UnsupportedDefaultRecord:
		return "unsupported default record"
	case InvalidValue:
		return "invalid value"
	case ValueOverflow:
		return "value overflow"
	case StringTooLong:
		return "string too long"
	}
	return "unknown error kind"
}

// Error is the scanner's single error type. Filename and Offset are
// attached at every throw site per the scanner's error handling design;
// Field and the two Type strings are populated for resolution errors.
type Error struct {
	Kind     Kind
	Filename string
	Offset   int64
	Field    string
	WriterTy string
	ReaderTy string
	Err      error
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

func (e *Error) Error() string {
	b := &bytes.Buffer{}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Filename != "" {
		pad(b, ": ")
		b.WriteString(e.Filename)
		b.WriteString("@")
		b.WriteString(strconv.FormatInt(e.Offset, 10))
	}
	if e.Field != "" {
		pad(b, ": ")
		fmt.Fprintf(b, "field %q (writer=%s reader=%s)", e.Field, e.WriterTy, e.ReaderTy)
	}
	if e.Err != nil {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error from any mix of a Kind, a wrapped error, and a
// printf-style message (message and args must come last, if present).
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args to avroerr.E")
	}
	e := &Error{}
	for i, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case error:
			e.Err = a
		case string:
			e.Err = fmt.Errorf(a, args[i+1:]...)
			return withLocation(e, args)
		default:
			// ignore unrecognized positional args; Location and
			// FieldMismatch args are picked up by withLocation below.
		}
	}
	return withLocation(e, args)
}

func withLocation(e *Error, args []interface{}) *Error {
	for _, arg := range args {
		if loc, ok := arg.(Location); ok {
			e.Filename = loc.Filename
			e.Offset = loc.Offset
		}
		if f, ok := arg.(FieldMismatch); ok {
			e.Field = f.Field
			e.WriterTy = f.WriterType
			e.ReaderTy = f.ReaderType
		}
	}
	return e
}

// Location attaches a file name and byte offset to an Error.
type Location struct {
	Filename string
	Offset   int64
}

// FieldMismatch attaches the offending field name and both types to a
// resolution-time Error.
type FieldMismatch struct {
	Field      string
	WriterType string
	ReaderType string
}

// KindOf extracts the Kind from err, or Other if err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return Other
}
