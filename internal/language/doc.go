// Package language normalizes language hints from configuration, the CLI
// and video metadata to ISO 639-1 codes.
//
// Names are accepted in English and Portuguese ("portuguese", "português"),
// as are ISO 639-2 codes and regional tags ("pt-BR").
package language
