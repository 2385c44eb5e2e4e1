// Package export renders a catalog's resolved artifacts as download lists.
//
//	creator := export.NewListCreator(export.FormatMetalink)
//	content, err := creator.CreateList(cat.Artifacts)
//	err = ioutils.WriteFile(ctx, "quartus.meta4", content)
//
// Supported formats:
//   - plain URL list (wget -i)
//   - aria2c input file, with sha1 verification
//   - Metalink 4
package export
