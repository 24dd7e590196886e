//go:build !linux

package local

func renameNoReplace(oldAbs, newAbs string) error {
	return renameChecked(oldAbs, newAbs)
}
