package main

import (
	"archive/zip"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/go-python/wheelinstall/pkg/destination/ocilayer"
	"github.com/go-python/wheelinstall/pkg/fsutil"
	"github.com/go-python/wheelinstall/pkg/install"
	"github.com/go-python/wheelinstall/pkg/install/metadata"
	"github.com/go-python/wheelinstall/pkg/python"
	"github.com/go-python/wheelinstall/pkg/reproducible"
	"github.com/go-python/wheelinstall/pkg/wheelsource"
)

func init() {
	var platFile string
	var installerName string
	var outFile string
	cmd := &cobra.Command{
		Use:   "layer [flags] IN_WHEELFILE.whl",
		Short: "Install a wheel in to a new OCI image layer",
		Long: "Given a Python wheel file, install it directly in to a new single-layer " +
			"OCI image tarball, without touching the local filesystem.  Takes the same " +
			"--platform-file as the install subcommand." +
			"\n\n" +
			"File timestamps in the layer are clamped to SOURCE_DATE_EPOCH (or the " +
			"current time, if unset) for build reproducibility.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yamlBytes, err := os.ReadFile(platFile)
			if err != nil {
				return err
			}
			var plat python.Platform
			if err := yaml.Unmarshal(yamlBytes, &plat, yaml.DisallowUnknownFields); err != nil {
				return fmt.Errorf("%s: %w", platFile, err)
			}
			if err := plat.Init(); err != nil {
				return fmt.Errorf("%s: %w", platFile, err)
			}

			wheelPath := args[0]
			zr, err := zip.OpenReader(wheelPath)
			if err != nil {
				return err
			}
			defer zr.Close()

			src, err := wheelsource.Open(&zr.Reader, wheelPath)
			if err != nil {
				return fmt.Errorf("%s: %w", wheelPath, err)
			}

			recordScheme := "platlib"
			if src.Metadata().RootIsPurelib {
				recordScheme = "purelib"
			}

			dst := &ocilayer.Destination{
				Schemes: map[string]string{
					"purelib": plat.Scheme.PureLib,
					"platlib": plat.Scheme.PlatLib,
					"headers": plat.Scheme.Headers,
					"scripts": plat.Scheme.Scripts,
					"data":    plat.Scheme.Data,
				},
				RecordScheme:       recordScheme,
				ConsoleInterpreter: plat.ConsoleShebang,
				GUIInterpreter:     plat.GraphicalShebang,
				PlatformTag:        plat.PlatformTag,
				ClampTime:          reproducible.Now(),
			}

			extra := map[string][]byte{
				"INSTALLER": metadata.Installer(installerName),
			}
			directURL, err := metadata.DirectURLJSON(metadata.DirectURL{
				URL: "file://" + wheelPath,
			})
			if err != nil {
				return err
			}
			extra["direct_url.json"] = directURL

			if err := install.Install(cmd.Context(), src, dst, plat, extra); err != nil {
				return err
			}

			layer, err := dst.Layer()
			if err != nil {
				return err
			}

			out, err := os.Create(outFile)
			if err != nil {
				return err
			}
			defer out.Close()
			return fsutil.WriteLayer(layer, out)
		},
	}
	cmd.Flags().StringVar(&platFile, "platform-file", "",
		"Read `IN_YAML_FILE` to determine details about the target platform")
	if err := cmd.MarkFlagRequired("platform-file"); err != nil {
		panic(err)
	}
	cmd.Flags().StringVar(&installerName, "installer-name", "wheelinstall",
		"Value written to the installed distribution's INSTALLER file")
	cmd.Flags().StringVar(&outFile, "output", "layer.tar",
		"Write the resulting OCI layer tarball to `OUT_FILE`")
	argparser.AddCommand(cmd)
}
