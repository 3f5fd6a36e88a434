// seed_directory genera el script SQL que puebla el directorio del taller (pipelines, etapas,
// departamentos e instrumentos) a partir de la exportación XML del sistema de gestión.
//
// Uso: go run ./cmd/seed_directory [ruta/directorio.xml]
// Por defecto busca directorio.xml en el directorio actual.
// Escribe: migrations/002_seed_directory.sql
package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Formato de la exportación:
//
//	<directorio>
//	  <pipeline id="pipe-hair" nombre="Peluquería">
//	    <etapa id="st-1" nombre="New" posicion="1"/>
//	  </pipeline>
//	  <departamento id="dep-hair" nombre="Hair" pipeline="pipe-hair"/>
//	  <instrumento id="inst-1" nombre="Secador" departamento="dep-hair" pipeline=""/>
//	</directorio>
type directorio struct {
	Pipelines     []pipeline     `xml:"pipeline"`
	Departamentos []departamento `xml:"departamento"`
	Instrumentos  []instrumento  `xml:"instrumento"`
}

type pipeline struct {
	ID     string  `xml:"id,attr"`
	Nombre string  `xml:"nombre,attr"`
	Etapas []etapa `xml:"etapa"`
}

type etapa struct {
	ID       string `xml:"id,attr"`
	Nombre   string `xml:"nombre,attr"`
	Posicion int    `xml:"posicion,attr"`
}

type departamento struct {
	ID       string `xml:"id,attr"`
	Nombre   string `xml:"nombre,attr"`
	Pipeline string `xml:"pipeline,attr"`
}

type instrumento struct {
	ID           string `xml:"id,attr"`
	Nombre       string `xml:"nombre,attr"`
	Departamento string `xml:"departamento,attr"`
	Pipeline     string `xml:"pipeline,attr"` // id o nombre libre (datos heredados)
}

func main() {
	xmlPath := "directorio.xml"
	if len(os.Args) > 1 {
		xmlPath = os.Args[1]
	}
	f, err := os.Open(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir XML: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	d, err := decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar XML: %v\n", err)
		os.Exit(1)
	}
	if err := d.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Directorio inválido: %v\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join(findModuleRoot(), "migrations", "002_seed_directory.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := writeSQL(out, d); err != nil {
		fmt.Fprintf(os.Stderr, "Escribir SQL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generado %s: %d pipelines, %d departamentos, %d instrumentos\n",
		outPath, len(d.Pipelines), len(d.Departamentos), len(d.Instrumentos))
}

// decode lee la exportación; las exportaciones antiguas vienen en ISO-8859-1 o Windows-1252.
func decode(r io.Reader) (*directorio, error) {
	var d directorio
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToUpper(charset) {
		case "ISO-8859-1", "ISO8859-1", "LATIN1":
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		case "WINDOWS-1252", "CP1252":
			return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
		}
		return input, nil
	}
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	d.trim()
	return &d, nil
}

func (d *directorio) trim() {
	for i := range d.Pipelines {
		p := &d.Pipelines[i]
		p.ID, p.Nombre = strings.TrimSpace(p.ID), strings.TrimSpace(p.Nombre)
		for j := range p.Etapas {
			e := &p.Etapas[j]
			e.ID, e.Nombre = strings.TrimSpace(e.ID), strings.TrimSpace(e.Nombre)
		}
	}
	for i := range d.Departamentos {
		x := &d.Departamentos[i]
		x.ID, x.Nombre, x.Pipeline = strings.TrimSpace(x.ID), strings.TrimSpace(x.Nombre), strings.TrimSpace(x.Pipeline)
	}
	for i := range d.Instrumentos {
		x := &d.Instrumentos[i]
		x.ID, x.Nombre = strings.TrimSpace(x.ID), strings.TrimSpace(x.Nombre)
		x.Departamento, x.Pipeline = strings.TrimSpace(x.Departamento), strings.TrimSpace(x.Pipeline)
	}
}

// validate exige ids únicos y referencias resolubles dentro del mismo archivo.
// El pipeline de un instrumento es texto libre y no se valida.
func (d *directorio) validate() error {
	pipes := make(map[string]bool)
	stages := make(map[string]bool)
	for _, p := range d.Pipelines {
		if p.ID == "" || p.Nombre == "" {
			return fmt.Errorf("pipeline sin id o nombre")
		}
		if pipes[p.ID] {
			return fmt.Errorf("pipeline %q duplicado", p.ID)
		}
		pipes[p.ID] = true
		for _, e := range p.Etapas {
			if e.ID == "" || e.Nombre == "" {
				return fmt.Errorf("etapa sin id o nombre en pipeline %q", p.ID)
			}
			if stages[e.ID] {
				return fmt.Errorf("etapa %q duplicada", e.ID)
			}
			stages[e.ID] = true
		}
	}
	deps := make(map[string]bool)
	for _, x := range d.Departamentos {
		if x.ID == "" || x.Nombre == "" {
			return fmt.Errorf("departamento sin id o nombre")
		}
		if deps[x.ID] {
			return fmt.Errorf("departamento %q duplicado", x.ID)
		}
		if x.Pipeline != "" && !pipes[x.Pipeline] {
			return fmt.Errorf("departamento %q: pipeline %q inexistente", x.ID, x.Pipeline)
		}
		deps[x.ID] = true
	}
	seen := make(map[string]bool)
	for _, x := range d.Instrumentos {
		if x.ID == "" || x.Nombre == "" {
			return fmt.Errorf("instrumento sin id o nombre")
		}
		if seen[x.ID] {
			return fmt.Errorf("instrumento %q duplicado", x.ID)
		}
		if x.Departamento != "" && !deps[x.Departamento] {
			return fmt.Errorf("instrumento %q: departamento %q inexistente", x.ID, x.Departamento)
		}
		seen[x.ID] = true
	}
	return nil
}

// writeSQL escribe los INSERT en orden de dependencias (pipelines, etapas, departamentos,
// instrumentos), ordenados por id para una salida estable y reejecutable.
func writeSQL(w io.Writer, d *directorio) error {
	var b strings.Builder
	b.WriteString("-- Directorio del taller\n")
	b.WriteString("-- Generado por cmd/seed_directory\n\n")

	pipes := append([]pipeline(nil), d.Pipelines...)
	sort.Slice(pipes, func(i, j int) bool { return pipes[i].ID < pipes[j].ID })

	b.WriteString("-- 1. Pipelines\n")
	for _, p := range pipes {
		fmt.Fprintf(&b, "INSERT INTO pipelines (id, name) VALUES (%s, %s)\n", quote(p.ID), quote(p.Nombre))
		b.WriteString("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name;\n")
	}

	b.WriteString("\n-- 2. Etapas\n")
	for _, p := range pipes {
		etapas := append([]etapa(nil), p.Etapas...)
		sort.SliceStable(etapas, func(i, j int) bool { return etapas[i].Posicion < etapas[j].Posicion })
		for _, e := range etapas {
			fmt.Fprintf(&b, "INSERT INTO stages (id, pipeline_id, name, position) VALUES (%s, %s, %s, %d)\n",
				quote(e.ID), quote(p.ID), quote(e.Nombre), e.Posicion)
			b.WriteString("ON CONFLICT (id) DO UPDATE SET pipeline_id = EXCLUDED.pipeline_id, name = EXCLUDED.name, position = EXCLUDED.position;\n")
		}
	}

	deps := append([]departamento(nil), d.Departamentos...)
	sort.Slice(deps, func(i, j int) bool { return deps[i].ID < deps[j].ID })
	b.WriteString("\n-- 3. Departamentos\n")
	for _, x := range deps {
		fmt.Fprintf(&b, "INSERT INTO departments (id, name, pipeline_id) VALUES (%s, %s, %s)\n",
			quote(x.ID), quote(x.Nombre), nullable(x.Pipeline))
		b.WriteString("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, pipeline_id = EXCLUDED.pipeline_id;\n")
	}

	insts := append([]instrumento(nil), d.Instrumentos...)
	sort.Slice(insts, func(i, j int) bool { return insts[i].ID < insts[j].ID })
	b.WriteString("\n-- 4. Instrumentos\n")
	for _, x := range insts {
		fmt.Fprintf(&b, "INSERT INTO instruments (id, name, department_id, pipeline_name) VALUES (%s, %s, %s, %s)\n",
			quote(x.ID), quote(x.Nombre), nullable(x.Departamento), nullable(x.Pipeline))
		b.WriteString("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, department_id = EXCLUDED.department_id, pipeline_name = EXCLUDED.pipeline_name;\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func nullable(s string) string {
	if s == "" {
		return "NULL"
	}
	return quote(s)
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
