package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diwise/levelstore/internal/pkg/application/editor"
	"github.com/diwise/levelstore/pkg/graph/codec"
	"github.com/matryer/is"
)

func TestCollectRowsHashesBothStores(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	level := editor.LevelConfig{
		ID:        "c1",
		Primary:   filepath.Join(dir, "c1.xml"),
		Companion: filepath.Join(dir, "c1_preload.xml"),
	}

	is.NoErr(os.WriteFile(level.Primary, []byte(primaryXML), 0644))
	is.NoErr(os.WriteFile(level.Companion, []byte(companionXML), 0644))

	rows, err := collectRows(context.Background(), level, codec.NewRegistry())
	is.NoErr(err)
	is.Equal(len(rows), 4)

	hashes := map[string]HashRow{}
	for _, r := range rows {
		is.True(strings.HasPrefix(r.Hash, "blake2b-"))
		hashes[r.ID] = r
	}

	is.Equal(hashes["10"].Store, editor.CompanionStore)
	is.Equal(hashes["1"].Hash, hashes["10"].Hash) // identical widgets
	is.Equal(hashes["2"].Hash, hashes["11"].Hash) // holders of identical widgets
	is.True(hashes["1"].Hash != hashes["2"].Hash)
}

func TestCollectRowsWithoutCompanion(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	level := editor.LevelConfig{ID: "c1", Primary: filepath.Join(dir, "c1.xml")}
	is.NoErr(os.WriteFile(level.Primary, []byte(primaryXML), 0644))

	rows, err := collectRows(context.Background(), level, codec.NewRegistry())
	is.NoErr(err)
	is.Equal(len(rows), 2)
}

func TestCollectRowsFailsOnDanglingReference(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	level := editor.LevelConfig{ID: "c1", Primary: filepath.Join(dir, "c1.xml")}
	is.NoErr(os.WriteFile(level.Primary, []byte(companionXML), 0644))

	_, err := collectRows(context.Background(), level, codec.NewRegistry())
	is.NoErr(err) // companion fixture is self contained

	is.NoErr(os.WriteFile(level.Primary, []byte(`<Instances><Object type="Holder" id="2"><Pointer name="Target" type="Widget" elements="1"><Item>99</Item></Pointer></Object></Instances>`), 0644))

	_, err = collectRows(context.Background(), level, codec.NewRegistry())
	is.True(err != nil)
}

func TestConnStr(t *testing.T) {
	is := is.New(t)

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "levels")
	t.Setenv("POSTGRES_PASSWORD", "pw")

	cfg := LoadConfiguration(context.Background())
	is.Equal(cfg.ConnStr(), "postgres://levels:pw@db:5432/diwise?sslmode=disable")
}

const primaryXML string = `<Instances>
	<Object type="Widget" id="1">
		<Attribute name="Name" type="string" elements="1"><Item>Foo</Item></Attribute>
	</Object>
	<Object type="Holder" id="2">
		<Pointer name="Target" type="Widget" elements="1"><Item>1</Item></Pointer>
	</Object>
</Instances>`

const companionXML string = `<Instances>
	<Object type="Widget" id="10">
		<Attribute name="Name" type="string" elements="1"><Item>Foo</Item></Attribute>
	</Object>
	<Object type="Holder" id="11">
		<Pointer name="Target" type="Widget" elements="1"><Item>10</Item></Pointer>
	</Object>
</Instances>`
