// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import "testing"

func TestAccessFlagsReadOnly(t *testing.T) {
	tests := []struct {
		name  string
		flags AccessFlags
		want  bool
	}{
		{"empty", AccessNone, true},
		{"transfer read", AccessTransferRead, true},
		{"transfer write", AccessTransferWrite, false},
		{"read and write", AccessTransferRead | AccessTransferWrite, false},
		{"shader read", AccessShaderRead, true},
		{"shader write", AccessShaderWrite, false},
		{"color attachment write", AccessColorAttachmentWrite, false},
		{"depth read and write", AccessDepthAttachmentRead | AccessDepthAttachmentWrite, false},
		{"index", AccessIndexRead, true},
		{"indirect", AccessIndirectRead, true},
		{"present", AccessPresent, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.ReadOnly(); got != tt.want {
				t.Errorf("ReadOnly() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccessFlagsReadableWritable(t *testing.T) {
	tests := []struct {
		name         string
		flags        AccessFlags
		wantReadable bool
		wantWritable bool
	}{
		{"empty", AccessNone, false, false},
		{"transfer read", AccessTransferRead, true, false},
		{"transfer write", AccessTransferWrite, false, true},
		{"copy alias", AccessTransferRead | AccessTransferWrite, true, true},
		{"depth attachment", AccessDepthAttachmentRead | AccessDepthAttachmentWrite, true, true},
		{"fragment write only", AccessFragmentShaderWrite, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.Readable(); got != tt.wantReadable {
				t.Errorf("Readable() = %v, want %v", got, tt.wantReadable)
			}
			if got := tt.flags.Writable(); got != tt.wantWritable {
				t.Errorf("Writable() = %v, want %v", got, tt.wantWritable)
			}
		})
	}
}

func TestAccessFlagsContains(t *testing.T) {
	f := AccessShaderRead | AccessIndexRead
	if !f.Contains(AccessVertexShaderRead) {
		t.Errorf("Contains(VertexShaderRead) = false, want true")
	}
	if !f.Contains(AccessShaderRead) {
		t.Errorf("Contains(ShaderRead) = false, want true")
	}
	if f.Contains(AccessTransferWrite) {
		t.Errorf("Contains(TransferWrite) = true, want false")
	}
}

func TestAccessFlagsString(t *testing.T) {
	tests := []struct {
		flags AccessFlags
		want  string
	}{
		{AccessNone, "None"},
		{AccessTransferRead, "TransferRead"},
		{AccessTransferRead | AccessTransferWrite, "TransferRead|TransferWrite"},
		{AccessShaderRead, "VertexShaderRead|FragmentShaderRead"},
		{AccessPresent, "Present"},
	}
	for _, tt := range tests {
		if got := tt.flags.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestIndexFormatBytes(t *testing.T) {
	if got := IndexFormatUint16.Bytes(); got != 2 {
		t.Errorf("IndexFormatUint16.Bytes() = %d, want 2", got)
	}
	if got := IndexFormatUint32.Bytes(); got != 4 {
		t.Errorf("IndexFormatUint32.Bytes() = %d, want 4", got)
	}
}
