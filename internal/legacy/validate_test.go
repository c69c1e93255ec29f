package legacy_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/legacy"
	"zeuxkit.dev/internal/legacy/legacytest"
	"zeuxkit.dev/internal/world"
)

func TestValidate_MinimalWorld(t *testing.T) {
	path, _ := legacytest.Write(t, "min.mzx", legacytest.Spec{Name: "Minimal"})

	rec := &diag.Recorder{}
	v := legacy.Validate(path, false, rec)
	require.Equal(t, legacy.Success, v.Result, "err: %v", v.Err)
	assert.Equal(t, world.V284, v.Version)
	assert.Equal(t, 1, v.Boards)
	assert.Empty(t, rec.Errors())
}

func TestValidate_MinimalSavegame(t *testing.T) {
	path, _ := legacytest.Write(t, "min.sav", legacytest.Spec{
		Savegame: true,
		Counters: []world.Counter{{Name: "gold", Value: 3}},
		Strings:  []world.String{{Name: "$who", Value: []byte("me")}},
		ModName:  "song.mod",
	})

	v := legacy.Validate(path, true, nil)
	require.Equal(t, legacy.Success, v.Result, "err: %v", v.Err)
	assert.Equal(t, 1, v.Boards)
}

func TestValidate_Missing(t *testing.T) {
	rec := &diag.Recorder{}
	v := legacy.Validate(filepath.Join(t.TempDir(), "nope.mzx"), false, rec)
	assert.Equal(t, legacy.Missing, v.Result)
	assert.True(t, errors.Is(v.Err, diag.ErrFileMissing))
	assert.True(t, rec.Has(diag.CodeFileDoesNotExist))

	// Directories are not regular files.
	v = legacy.Validate(t.TempDir(), false, nil)
	assert.Equal(t, legacy.Missing, v.Result)
}

func TestValidate_TruncatedAtEveryBoundary(t *testing.T) {
	cases := []struct {
		name string
		spec legacytest.Spec
		code string
	}{
		{"world", legacytest.Spec{Name: "cut"}, diag.CodeWorldFileInvalid},
		{"world with sfx", legacytest.Spec{SFX: []string{"5c-gec", "", "a"}}, diag.CodeWorldFileInvalid},
		{"savegame", legacytest.Spec{
			Savegame:   true,
			Counters:   []world.Counter{{Name: "c", Value: 1}},
			Strings:    []world.String{{Name: "$s", Value: []byte("v")}},
			ScreenMode: 3,
			Vlayer:     world.Vlayer{Width: 2, Height: 1, Chars: []byte("ab"), Colors: []byte{1, 2}},
		}, diag.CodeSaveFileInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := legacytest.Build(tc.spec)
			dir := t.TempDir()
			for _, cut := range f.Boundaries {
				require.Less(t, cut, f.TableEnd)
				path := filepath.Join(dir, "cut")
				require.NoError(t, os.WriteFile(path, f.Data[:cut], 0o644))

				rec := &diag.Recorder{}
				v := legacy.Validate(path, tc.spec.Savegame, rec)
				assert.Equal(t, legacy.Invalid, v.Result, "truncated at %d", cut)
				assert.True(t, errors.Is(v.Err, diag.ErrInvalid), "truncated at %d", cut)
				assert.True(t, rec.Has(tc.code), "truncated at %d", cut)
			}

			// One byte short of the table end is still invalid.
			path := filepath.Join(dir, "short")
			require.NoError(t, os.WriteFile(path, f.Data[:f.TableEnd-1], 0o644))
			assert.Equal(t, legacy.Invalid, legacy.Validate(path, tc.spec.Savegame, nil).Result)

			// The table end itself is enough for the structural scan.
			require.NoError(t, os.WriteFile(path, f.Data[:f.TableEnd], 0o644))
			assert.Equal(t, legacy.Success, legacy.Validate(path, tc.spec.Savegame, nil).Result)
		})
	}
}

func TestValidate_VersionBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		savegame bool
		version  int
		want     legacy.Result
		code     string
	}{
		{"world older than 2.51", false, world.V251 - 1, legacy.VersionMismatch, diag.CodeWorldVersionOld},
		{"world 2.51", false, world.V251, legacy.Success, ""},
		{"world 2.83", false, world.V283, legacy.Success, ""},
		{"world 2.84", false, world.V284, legacy.Success, ""},
		{"world newer than 2.84", false, world.V284 + 1, legacy.VersionMismatch, diag.CodeWorldVersionTooRecent},
		{"savegame 2.83", true, world.V283, legacy.VersionMismatch, diag.CodeSaveVersionOld},
		{"savegame 2.84", true, world.V284, legacy.Success, ""},
		{"savegame newer than 2.84", true, world.V284 + 1, legacy.VersionMismatch, diag.CodeSaveVersionTooRecent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path, _ := legacytest.Write(t, "v", legacytest.Spec{Savegame: tc.savegame, Version: tc.version})
			rec := &diag.Recorder{}
			v := legacy.Validate(path, tc.savegame, rec)
			assert.Equal(t, tc.want, v.Result, "err: %v", v.Err)
			assert.Equal(t, tc.version, v.Version)
			if tc.code != "" {
				assert.True(t, rec.Has(tc.code), "codes: %v", rec.Codes())
				var de *diag.Error
				require.True(t, errors.As(v.Err, &de))
				assert.Equal(t, tc.version, de.Version)
			}
		})
	}
}

func TestValidate_OldSignatures(t *testing.T) {
	cases := []struct {
		magic   string
		version int
	}{
		{"MZX", world.V100},
		{"MZ2", world.V200},
		{"MZA", world.V251},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.version, legacy.WorldMagic([]byte(tc.magic)), tc.magic)
	}
	assert.Equal(t, world.V251, legacy.SaveMagic([]byte("MZSV2")))
	assert.Equal(t, world.V251, legacy.SaveMagic([]byte("MZXSA")))
	assert.Zero(t, legacy.WorldMagic([]byte("XYZ")))
	assert.Zero(t, legacy.SaveMagic([]byte("MZ?..")))

	// 1.x worlds are recognized and rejected as too old.
	path, _ := legacytest.Write(t, "old.mzx", legacytest.Spec{Magic: []byte("MZX")})
	v := legacy.Validate(path, false, nil)
	assert.Equal(t, legacy.VersionMismatch, v.Result)
	assert.True(t, errors.Is(v.Err, diag.ErrVersionTooOld))
}

func TestValidate_BadSignature(t *testing.T) {
	path, _ := legacytest.Write(t, "bad.mzx", legacytest.Spec{Magic: []byte("QQQ")})
	assert.Equal(t, legacy.Invalid, legacy.Validate(path, false, nil).Result)

	path, _ = legacytest.Write(t, "bad.sav", legacytest.Spec{Savegame: true, Magic: []byte("MZQQQ")})
	assert.Equal(t, legacy.Invalid, legacy.Validate(path, true, nil).Result)
}

func TestValidate_PaletteRange(t *testing.T) {
	var spec legacytest.Spec
	spec.Palette[15] = world.RGB{R: 63, G: 63, B: 63}
	path, _ := legacytest.Write(t, "ok.mzx", spec)
	assert.Equal(t, legacy.Success, legacy.Validate(path, false, nil).Result)

	spec.Palette[15].B = 64
	path, _ = legacytest.Write(t, "hot.mzx", spec)
	v := legacy.Validate(path, false, nil)
	assert.Equal(t, legacy.Invalid, v.Result)
	assert.Contains(t, v.Err.Error(), "palette")
}

func TestValidate_ProtectionByte(t *testing.T) {
	for method := 1; method <= 3; method++ {
		path, _ := legacytest.Write(t, "p.mzx", legacytest.Spec{Method: method})
		rec := &diag.Recorder{}
		v := legacy.Validate(path, false, rec)
		assert.Equal(t, legacy.Protected, v.Result)
		assert.Equal(t, method, v.Method)
		assert.True(t, rec.Has(diag.CodeWorldPasswordProtected))
		assert.True(t, diag.IsWarning(v.Err))
	}

	path, _ := legacytest.Write(t, "p.mzx", legacytest.Spec{Method: 4})
	v := legacy.Validate(path, false, nil)
	assert.Equal(t, legacy.Invalid, v.Result)
	assert.Contains(t, v.Err.Error(), "protection")
}

func TestValidate_SFXTable(t *testing.T) {
	sfx := make([]string, world.NumSFX)
	sfx[0] = strings.Repeat("c", world.LegacySFXSize)
	path, _ := legacytest.Write(t, "sfx.mzx", legacytest.Spec{SFX: sfx})
	assert.Equal(t, legacy.Success, legacy.Validate(path, false, nil).Result)

	sfx[49] = strings.Repeat("d", world.LegacySFXSize+1)
	path, _ = legacytest.Write(t, "long.mzx", legacytest.Spec{SFX: sfx})
	v := legacy.Validate(path, false, nil)
	assert.Equal(t, legacy.Invalid, v.Result)
	assert.Contains(t, v.Err.Error(), "sfx")
}

func TestValidate_SFXSizeMismatch(t *testing.T) {
	f := legacytest.Build(legacytest.Spec{SFX: []string{"a"}})
	// The declared table size follows the global robot offset and the zero
	// board count.
	at := legacy.GlobalOffsetOffset + 5
	f.Data[at]++

	path := filepath.Join(t.TempDir(), "sfx.mzx")
	require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	v := legacy.Validate(path, false, nil)
	assert.Equal(t, legacy.Invalid, v.Result)
	assert.Contains(t, v.Err.Error(), "declared")
}

func TestValidate_NoBoards(t *testing.T) {
	path, _ := legacytest.Write(t, "empty.mzx", legacytest.Spec{Boards: []*world.Board{}, SFX: []string{}})
	v := legacy.Validate(path, false, nil)
	assert.Equal(t, legacy.Invalid, v.Result)
	assert.Contains(t, v.Err.Error(), "no boards")
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "version_mismatch", legacy.VersionMismatch.String())
	assert.Equal(t, "result(42)", legacy.Result(42).String())
}
