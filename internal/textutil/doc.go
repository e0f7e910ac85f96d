// Package textutil turns names chosen by the recorder into safe local file
// names.
package textutil
