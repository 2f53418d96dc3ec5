// Package jobconfig синтезирует конфигурации заданий eva-pipeline.
//
// Конфигурация строится слоями через неизменяемый Builder:
// базовые свойства проекта, фиксированные производные поля
// (задание, агрегация, база, fasta, vcf) и ровно одна ветка аннотации.
// Сериализованная форма — отсортированные строки key=value без экранирования.
package jobconfig
