// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"slices"
	"testing"

	"github.com/elliotnunn/psarc/internal/fileid"
	"github.com/elliotnunn/psarc/internal/psarc"
)

func fixtureReader(t *testing.T) (*psarc.Reader, []string) {
	t.Helper()
	r, err := psarc.NewReader(bytes.NewReader(readFixture(t, fixture)), psarc.Options{})
	if err != nil {
		t.Fatal(err)
	}
	names, err := r.Manifest()
	if err != nil {
		t.Fatal(err)
	}
	return r, names
}

func TestIndex(t *testing.T) {
	x, err := openIndex(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer x.Close()

	r, names := fixtureReader(t)
	one, two := fileid.ID{1}, fileid.ID{2}
	if err := x.add(one, "/dlc/one.psarc", 90898, r, names); err != nil {
		t.Fatal(err)
	}
	if err := x.add(two, "/dlc/two.psarc", 90898, r, names[:1]); err != nil {
		t.Fatal(err)
	}

	hits, err := x.find("songs/**/*.sng")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, h := range hits {
		got = append(got, h.Archive+":"+h.Name)
	}
	want := []string{"/dlc/one.psarc:songs/bin/generic/karmapolice_lead.sng", "/dlc/two.psarc:songs/bin/generic/karmapolice_lead.sng"}
	if !slices.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
	if h := hits[0]; h.Entry != 1 || h.Size != 108000 || !bytes.Equal(h.Hash, r.Entries[1].ContentHash[:]) {
		t.Errorf("record %+v", h.nameRecord)
	}

	if hits, err := x.find("**/*.json"); err != nil || len(hits) != 1 {
		t.Errorf("json: %v %v", hits, err)
	}
	if _, err := x.find("[unclosed"); err == nil {
		t.Error("bad pattern accepted")
	}

	list, err := x.archives()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Path != "/dlc/one.psarc" || list[0].Version != "1.4" || list[0].Entries != 8 {
		t.Errorf("archives %+v", list)
	}
}

func TestIndexReplaces(t *testing.T) {
	x, err := openIndex(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer x.Close()

	r, names := fixtureReader(t)
	id := fileid.ID{7}
	if err := x.add(id, "/old/path.psarc", 1, r, names); err != nil {
		t.Fatal(err)
	}
	if err := x.add(id, "/new/path.psarc", 1, r, names[4:]); err != nil {
		t.Fatal(err)
	}

	hits, err := x.find("**")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, h := range hits {
		got = append(got, h.Archive+":"+h.Name)
	}
	want := []string{"/new/path.psarc:appid.appid", "/new/path.psarc:flatmodels/rs/rsenumerable_root.flat", "/new/path.psarc:toolkit.version"}
	if !slices.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrefixEnd(t *testing.T) {
	cases := []struct{ in, want []byte }{
		{[]byte("n/"), []byte("n0")},
		{[]byte{'a', 0xff}, []byte{'b'}},
		{[]byte{0xff, 0xff}, nil},
	}
	for _, tc := range cases {
		if got := prefixEnd(tc.in); !bytes.Equal(got, tc.want) {
			t.Errorf("prefixEnd(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
