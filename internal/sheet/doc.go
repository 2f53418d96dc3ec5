// Package sheet читает входную таблицу файлов (CSV или TSV с заголовком)
// и превращает строки в domain.WorkItem.
//
// Разделитель определяется по заголовку: табуляция, если она есть,
// иначе запятая. Относительные пути разрешаются от каталога таблицы.
package sheet
